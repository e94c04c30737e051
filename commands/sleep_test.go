package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSleep(t *testing.T) {
	cases := map[string]struct {
		arg     string
		want    time.Duration
		wantErr bool
	}{
		"seconds":  {arg: "2", want: 2 * time.Second},
		"fraction": {arg: "0.5", want: 500 * time.Millisecond},
		"duration": {arg: "150ms", want: 150 * time.Millisecond},
		"negative": {arg: "-1", wantErr: true},
		"garbage":  {arg: "soon", wantErr: true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got, err := parseSleep(tc.arg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSleep_interrupted(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "sleep 1h &")
	require.NoError(t, err)
	job, err := env.session.Job(1)
	require.NoError(t, err)

	job.Interrupt()
	waitDone(t, job)
	assert.Equal(t, 130, job.Result().ExitCode)
	assert.Empty(t, env.stderr.String())
}

func TestSleep_usage(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "sleep")
	require.NoError(t, err)
	assert.Equal(t, 1, env.session.ExitCode())
	assert.Equal(t, "sleep: missing operand\n", env.stderr.String())
}
