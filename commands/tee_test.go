package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTee(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "echo hi | tee out copy")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", env.stdout.String())
	assert.Equal(t, "hi\n", env.readFile(t, "/home/test/out"))
	assert.Equal(t, "hi\n", env.readFile(t, "/home/test/copy"))

	_, err = env.run(t, "echo again | tee -a out > sink")
	require.NoError(t, err)
	assert.Equal(t, "hi\nagain\n", env.readFile(t, "/home/test/out"))

	_, err = env.run(t, "echo over | tee out")
	require.NoError(t, err)
	assert.Equal(t, "over\n", env.readFile(t, "/home/test/out"))
}
