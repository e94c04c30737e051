package commands

import (
	"testing"
	"time"

	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, j *shell.Job) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return j.Status() == shell.Done
	}, 5*time.Second, time.Millisecond)
}

func TestJobs(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "sleep 10 &")
	require.NoError(t, err)
	_, err = env.run(t, "jobs")
	require.NoError(t, err)
	assert.Equal(t, "[1] Background sleep 10\n", env.stdout.String())

	job, err := env.session.Job(1)
	require.NoError(t, err)

	_, err = env.run(t, "kill %1")
	require.NoError(t, err)
	waitDone(t, job)
	assert.Equal(t, 130, job.Result().ExitCode)
	assert.Empty(t, env.stderr.String())
}

func TestKill_unknownJob(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "kill %7")
	require.NoError(t, err)
	assert.Equal(t, 1, env.session.ExitCode())
	assert.NotEmpty(t, env.stderr.String())

	_, err = env.run(t, "kill")
	require.NoError(t, err)
	assert.Contains(t, env.stderr.String(), "kill: missing operand\n")
}

func TestFg(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "sleep 200ms &")
	require.NoError(t, err)

	got, err := env.run(t, "fg %1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, env.session.ExitCode())
	assert.Equal(t, "sleep 200ms\n", env.stderr.String())
	assert.Eventually(t, func() bool {
		return len(env.session.Jobs()) == 0
	}, 5*time.Second, time.Millisecond)
}

func TestFg_result(t *testing.T) {
	env := newTestEnv(t, "")
	gate := make(chan struct{})
	env.proc.AddFunction("test", "answer", func(proc shell.Process, args []interface{}) (interface{}, error) {
		<-gate
		proc.SetError(3)
		return 42, nil
	})

	_, err := env.run(t, "answer &")
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()

	got, err := env.run(t, "fg")
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, env.session.ExitCode())
}

func TestFg_noJobs(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "fg")
	require.NoError(t, err)
	assert.Equal(t, 1, env.session.ExitCode())
	assert.Equal(t, "fg: no current job\n", env.stderr.String())

	_, err = env.run(t, "bg x")
	require.NoError(t, err)
	assert.Contains(t, env.stderr.String(), "bg: invalid job id \"x\"\n")
}

func TestBg(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "sleep 10 &")
	require.NoError(t, err)
	job, err := env.session.Job(1)
	require.NoError(t, err)
	require.NoError(t, job.Suspend())

	_, err = env.run(t, "bg")
	require.NoError(t, err)
	assert.Equal(t, "[1] sleep 10 &\n", env.stdout.String())
	assert.Equal(t, shell.Background, job.Status())

	job.Interrupt()
	waitDone(t, job)
}
