package commands

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := map[string]struct {
		orig fs.FileMode
		mode string
		want fs.FileMode
	}{
		"octal":                 {orig: 0, mode: "644", want: 0644},
		"octal keeps type":      {orig: fs.ModeDir | 0700, mode: "755", want: fs.ModeDir | 0755},
		"octal setuid":          {orig: 0, mode: "4755", want: fs.ModeSetuid | 0755},
		"octal sticky":          {orig: fs.ModeDir, mode: "1777", want: fs.ModeDir | fs.ModeSticky | 0777},
		"add for all":           {orig: 0, mode: "+rwx", want: 0777},
		"add for user":          {orig: 0600, mode: "u+x", want: 0700},
		"remove from others":    {orig: 0666, mode: "go-w", want: 0644},
		"assign":                {orig: 0777, mode: "o=r", want: 0774},
		"assign clears":         {orig: 0777, mode: "=r", want: 0444},
		"several ops":           {orig: 0644, mode: "u+x-w", want: 0544},
		"several clauses":       {orig: 0600, mode: "u+x,g+r,o+r", want: 0744},
		"capital X on file":     {orig: 0644, mode: "a+X", want: 0644},
		"capital X executable":  {orig: 0744, mode: "a+X", want: 0755},
		"capital X directory":   {orig: fs.ModeDir | 0700, mode: "a+X", want: fs.ModeDir | 0711},
		"setgid":                {orig: 0755, mode: "g+s", want: fs.ModeSetgid | 0755},
		"sticky":                {orig: fs.ModeDir | 0777, mode: "+t", want: fs.ModeDir | fs.ModeSticky | 0777},
		"keep other bits on +x": {orig: fs.ModeDir | fs.ModeSticky, mode: "+x", want: fs.ModeDir | fs.ModeSticky | 0111},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			change, err := ParseMode(tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, change(tc.orig), "got %v want %v", change(tc.orig), tc.want)
		})
	}
}

func TestParseMode_errors(t *testing.T) {
	cases := map[string]string{
		"no operator":        "u",
		"unknown permission": "o+z",
		"unknown class":      "q+r",
		"empty clause":       "u+x,",
		"octal out of range": "77777",
	}

	for tn, mode := range cases {
		t.Run(tn, func(t *testing.T) {
			_, err := ParseMode(mode)
			assert.ErrorContains(t, err, "invalid mode")
		})
	}
}

func TestChmod_recursive(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeFiles(t, map[string]string{
		"/home/test/tree/a":     "x",
		"/home/test/tree/sub/b": "y",
	})

	_, err := env.run(t, "chmod -R go-rx tree")
	require.NoError(t, err)
	assert.Equal(t, 0, env.session.ExitCode())

	for name, want := range map[string]fs.FileMode{
		"/home/test/tree":       0700,
		"/home/test/tree/sub":   0700,
		"/home/test/tree/a":     0600,
		"/home/test/tree/sub/b": 0600,
	} {
		info, err := env.fs.Stat(name)
		require.NoError(t, err)
		assert.Equal(t, want, info.Mode().Perm(), name)
	}
}

func TestChmod_verbose(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeFiles(t, map[string]string{"/home/test/f": "x"})

	_, err := env.run(t, "chmod -v a+x f")
	require.NoError(t, err)
	assert.Equal(t, "mode of \"f\" changed from 0644 (-rw-r--r--) to 0755 (-rwxr-xr-x)\n", env.stdout.String())
}

func TestChmod_failures(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "chmod u+x")
	require.NoError(t, err)
	assert.Equal(t, 1, env.session.ExitCode())
	assert.Contains(t, env.stderr.String(), "chmod: missing operand after \"u+x\"")

	_, err = env.run(t, "chmod u+x missing")
	require.NoError(t, err)
	assert.Equal(t, 1, env.session.ExitCode())
	assert.Contains(t, env.stderr.String(), "chmod: cannot change \"missing\"")
}
