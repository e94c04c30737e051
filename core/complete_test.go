package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentWord(t *testing.T) {
	cases := map[string]struct {
		text      string
		wantWord  string
		wantFirst bool
	}{
		"empty":            {text: "", wantWord: "", wantFirst: true},
		"command":          {text: "ec", wantWord: "ec", wantFirst: true},
		"argument":         {text: "echo a.t", wantWord: "a.t", wantFirst: false},
		"after pipe":       {text: "cat x | gr", wantWord: "gr", wantFirst: true},
		"after pipe tight": {text: "cat x|gr", wantWord: "gr", wantFirst: true},
		"after semicolon":  {text: "x = 1; ec", wantWord: "ec", wantFirst: true},
		"path":             {text: "ls dir/su", wantWord: "dir/su", wantFirst: false},
		"new argument":     {text: "ls ", wantWord: "", wantFirst: false},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			word, first := currentWord(tc.text)
			assert.Equal(t, tc.wantWord, word)
			assert.Equal(t, tc.wantFirst, first)
		})
	}
}

func TestCompleter(t *testing.T) {
	rt, cfg := newTestRuntime(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dir(), "alpha.txt"), nil, 0600))
	require.NoError(t, os.Mkdir(filepath.Join(cfg.Dir(), "alps"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dir(), "alps", "inner"), nil, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dir(), ".alpine"), nil, 0600))

	var out output
	session, err := rt.NewSession(out.vio())
	require.NoError(t, err)
	c := &completer{shell: &Shell{runtime: rt, session: session}}

	cases := map[string]struct {
		line       string
		want       []string
		wantLength int
	}{
		"command":        {line: "ech", want: []string{"o "}, wantLength: 3},
		"scoped command": {line: "sh:ec", want: []string{"ho "}, wantLength: 5},
		"files":          {line: "cat al", want: []string{"pha.txt ", "ps/"}, wantLength: 2},
		"hidden files":   {line: "cat .al", want: []string{"pine "}, wantLength: 3},
		"directory":      {line: "cat alps/i", want: []string{"nner "}, wantLength: 1},
		"missing dir":    {line: "cat nowhere/x", want: nil, wantLength: 1},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			line := []rune(tc.line)
			got, length := c.Do(line, len(line))

			var gotStrings []string
			for _, candidate := range got {
				gotStrings = append(gotStrings, string(candidate))
			}
			assert.Equal(t, tc.want, gotStrings)
			assert.Equal(t, tc.wantLength, length)
		})
	}
}

func TestIncomplete(t *testing.T) {
	assert.False(t, incomplete("echo done"))
	assert.True(t, incomplete("echo 'open"))
	assert.True(t, incomplete("cat <<EOF\nfirst line"))
	assert.False(t, incomplete("cat <<EOF\nfirst line\nEOF"))
}
