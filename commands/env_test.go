package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnv(t *testing.T) {
	cases := goldenTestSuite{
		"list":   {Line: "env"},
		"assign": {Line: "env A=alpha; env"},
		"unset":  {Line: "env -u USER; env"},
	}

	cases.Run(t, "env")
}

func TestEnv_errors(t *testing.T) {
	cases := map[string]struct {
		line   string
		stderr string
	}{
		"no equals": {line: "env novalue", stderr: "env: invalid assignment \"novalue\"\n"},
		"no name":   {line: "env =value", stderr: "env: invalid assignment \"=value\"\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			env := newTestEnv(t, "")

			_, err := env.run(t, tc.line)
			require.NoError(t, err)
			assert.Equal(t, 1, env.session.ExitCode())
			assert.Equal(t, tc.stderr, env.stderr.String())
		})
	}
}

func TestEnv_value(t *testing.T) {
	env := newTestEnv(t, "")

	got, err := env.run(t, "env -u HOME --value EXTRA=1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"EXTRA": "1",
		"PWD":   "/home/test",
		"USER":  "test",
	}, got)
	assert.Empty(t, env.stdout.String())

	_, err = env.run(t, "vars = $(env --value); echo ${vars[USER]} $EXTRA")
	require.NoError(t, err)
	assert.Equal(t, "test 1\n", env.stdout.String())
}
