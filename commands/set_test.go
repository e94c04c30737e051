package commands

import (
	"testing"

	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	env := newTestEnv(t, "")
	get := func(name string) interface{} {
		t.Helper()
		v, err := env.session.Get(name)
		require.NoError(t, err)
		return v
	}

	_, err := env.run(t, "set n 1")
	require.NoError(t, err)
	assert.Equal(t, 1, get("n"))

	_, err = env.run(t, "set l a b")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, get("l"))

	_, err = env.run(t, "set n")
	require.NoError(t, err)
	assert.Nil(t, get("n"))

	_, err = env.run(t, "set")
	require.NoError(t, err)
	assert.Contains(t, env.stdout.String(), "l=[a, b]\n")

	_, err = env.run(t, "set 'bad name' 1")
	require.NoError(t, err)
	assert.Equal(t, 1, env.session.ExitCode())
	assert.Equal(t, "set: invalid variable name: bad name\n", env.stderr.String())
}

func TestSet_trace(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "set -x")
	require.NoError(t, err)
	v, err := env.session.Get(shell.VarEcho)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = env.run(t, "echo traced")
	require.NoError(t, err)
	assert.Equal(t, "traced\n", env.stdout.String())
	assert.Contains(t, env.stderr.String(), "+echo traced\n")

	_, err = env.run(t, "set +x")
	require.NoError(t, err)
	v, err = env.session.Get(shell.VarEcho)
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.NotContains(t, env.stdout.String(), "=", "set +x doesn't list variables")
}
