package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catFiles = map[string]string{
	"/home/test/a.txt": "one\ntwo\n",
	"/home/test/b.txt": "three\n",
}

func TestCat(t *testing.T) {
	cases := goldenTestSuite{
		"missing":     {Line: "cat 'does not exist.txt'"},
		"numbered":    {Line: "cat -n a.txt b.txt", Files: catFiles},
		"concatenate": {Line: "cat a.txt - b.txt", Files: catFiles},
	}

	cases.Run(t, "cat")
}

func TestCat_files(t *testing.T) {
	env := newTestEnv(t, "")

	// Test with missing file
	{
		_, err := env.run(t, "cat /foo.txt")
		require.NoError(t, err)

		assert.NotEqual(t, 0, env.session.ExitCode(), "exit code")
	}
	{
		env.writeFiles(t, map[string]string{"/foo.txt": "Hello, world!"})
		env.stdout.buf.Reset()

		_, err := env.run(t, "cat /foo.txt")
		require.NoError(t, err)

		assert.Equal(t, 0, env.session.ExitCode(), "exit code")
		assert.Equal(t, "Hello, world!", env.stdout.String())
	}
}

func TestCat_stdin(t *testing.T) {
	env := newTestEnv(t, "typed\n")

	_, err := env.run(t, "cat | cat")
	require.NoError(t, err)
	assert.Equal(t, "typed\n", env.stdout.String())
}
