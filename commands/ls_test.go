package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lsFiles = map[string]string{
	"/home/test/a.txt":     "a",
	"/home/test/b.txt":     "bb",
	"/home/test/.hidden":   "",
	"/home/test/dir/inner": "",
}

func TestLs(t *testing.T) {
	cases := goldenTestSuite{
		"columns":      {Line: "ls --color=never", Files: lsFiles},
		"narrow":       {Line: "ls --color=never -w 12", Files: lsFiles},
		"one-per-line": {Line: "ls --color=never -1", Files: lsFiles},
		"directories":  {Line: "ls --color=never dir .", Files: lsFiles},
		"all":          {Line: "ls --color=never -a", Files: lsFiles},
	}

	cases.Run(t, "ls")
}

func TestLs_long(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeFiles(t, lsFiles)

	_, err := env.run(t, "ls --color=never -l")
	require.NoError(t, err)

	out := env.stdout.String()
	assert.Regexp(t, `^total \d+\n`, out)
	assert.Regexp(t, `(?m)^-rw-r--r-- 1 root root 1 .* a\.txt$`, out)
	assert.Regexp(t, `(?m)^d\S+ +2 .* dir$`, out)
}

func TestLs_color(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeFiles(t, lsFiles)

	_, err := env.run(t, "ls --color=always -1 dir")
	require.NoError(t, err)
	assert.Contains(t, env.stdout.String(), "\x1b[")
}

func TestLs_missing(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "ls missing")
	require.NoError(t, err)
	assert.Equal(t, 1, env.session.ExitCode())
	assert.Contains(t, env.stderr.String(), "ls: missing: ")
}

func TestLs_ordering(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
	}{
		"reverse":        {line: "ls --color=never -1 -r", want: "dir\nb.txt\na.txt\n"},
		"by size":        {line: "ls --color=never -1 -S a.txt b.txt", want: "b.txt\na.txt\n"},
		"files first":    {line: "ls --color=never -1 dir b.txt", want: "b.txt\n\ndir:\ninner\n"},
		"directory self": {line: "ls --color=never -1 -d dir .", want: ".\ndir\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.writeFiles(t, lsFiles)

			_, err := env.run(t, tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, env.stdout.String())
		})
	}
}

func TestLs_value(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeFiles(t, lsFiles)

	got, err := env.run(t, "ls --value dir b.txt")
	require.NoError(t, err)
	assert.Empty(t, env.stdout.String())

	entries, ok := got.([]interface{})
	require.True(t, ok, "got %T", got)
	require.Len(t, entries, 2)

	first := entries[0].(map[string]interface{})
	assert.Equal(t, "b.txt", first["name"])
	assert.Equal(t, int64(2), first["size"])
	assert.Equal(t, false, first["dir"])

	second := entries[1].(map[string]interface{})
	assert.Equal(t, "inner", second["name"])
	assert.Equal(t, "dir/inner", second["path"])
}
