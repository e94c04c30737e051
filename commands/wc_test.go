package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWc(t *testing.T) {
	cases := goldenTestSuite{
		"missing": {Line: "wc 'does not exist.txt'"},
		"files":   {Line: "wc a.txt b.txt", Files: catFiles},
		"lines":   {Line: "cat a.txt | wc -l", Files: catFiles},
	}

	cases.Run(t, "wc")
}

func TestWc_single_file(t *testing.T) {
	env := newTestEnv(t, "")

	// Test with missing file
	{
		_, err := env.run(t, "wc /foo.txt")
		require.NoError(t, err)

		assert.NotEqual(t, 0, env.session.ExitCode(), "exit code")
	}
	{
		env.writeFiles(t, map[string]string{"/foo.txt": "Hello,\nworld !"})

		_, err := env.run(t, "wc /foo.txt")
		require.NoError(t, err)

		assert.Equal(t, 0, env.session.ExitCode(), "exit code")
		assert.Equal(t, "1 3 14 /foo.txt\n", env.stdout.String())
	}
}

func TestWc_characters(t *testing.T) {
	env := newTestEnv(t, "héllo\n")

	_, err := env.run(t, "wc -c -m")
	require.NoError(t, err)
	assert.Equal(t, "7 6\n", env.stdout.String())
}

func TestWc_value(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeFiles(t, catFiles)

	got, err := env.run(t, "wc --value a.txt")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":  "a.txt",
		"lines": 2,
		"words": 2,
		"bytes": 8,
		"chars": 8,
	}, got)
	assert.Empty(t, env.stdout.String())

	got, err = env.run(t, "wc --value a.txt b.txt")
	require.NoError(t, err)
	require.IsType(t, []interface{}{}, got)
	assert.Len(t, got, 2)

	lines, err := env.run(t, "counts = $(cat a.txt | wc --value); echo ${counts[lines]}")
	require.NoError(t, err)
	assert.Nil(t, lines)
	assert.Equal(t, "2\n", env.stdout.String())
}
