package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnescape(t *testing.T) {
	cases := map[string]struct {
		in       string
		want     string
		wantStop bool
	}{
		"plain":             {in: "not escaped", want: "not escaped"},
		"newline":           {in: `a\nb`, want: "a\nb"},
		"escaped backslash": {in: `a\\nb`, want: `a\nb`},
		"escaped octal":     {in: `\\0101`, want: `\0101`},
		"octal":             {in: `\0101`, want: "A"},
		"short octal":       {in: `\07`, want: "\a"},
		"bare zero":         {in: `\0`, want: "\x00"},
		"hex":               {in: `\x4A`, want: "J"},
		"short hex":         {in: `\x9`, want: "\t"},
		"hex without digit": {in: `\xg`, want: `\xg`},
		"unknown":           {in: `\q`, want: `\q`},
		"trailing":          {in: `end\`, want: `end\`},
		"stop":              {in: `keep\cdrop`, want: "keep", wantStop: true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got, stop := unescape(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantStop, stop)
		})
	}
}

func TestEcho(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
	}{
		"words":      {line: "echo hello   world", want: "hello world\n"},
		"no newline": {line: "echo -n hi", want: "hi"},
		"escapes":    {line: `echo -e 'a\tb'`, want: "a\tb\n"},
		"raw":        {line: `echo 'a\tb'`, want: `a\tb` + "\n"},
		"nothing":    {line: "echo", want: "\n"},
		"values":     {line: "echo 1 [a b] null", want: "1 [a, b] null\n"},
		"stop":       {line: `echo -e 'a\cb'`, want: "a"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			env := newTestEnv(t, "")

			_, err := env.run(t, tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, env.stdout.String())
		})
	}
}
