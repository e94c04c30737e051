package shell

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	id       int
	previous JobStatus
	current  JobStatus
}

type transitionLog struct {
	mu  sync.Mutex
	log []transition
}

func (l *transitionLog) record(j *Job, previous, current JobStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = append(l.log, transition{j.ID(), previous, current})
}

func (l *transitionLog) all() []transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]transition(nil), l.log...)
}

// registerGate adds a "gate" command that blocks until the returned channel
// is closed or the job is interrupted, and a "later" command that writes
// to stdout once the channel is closed.
func registerGate(p *Processor) chan struct{} {
	gate := make(chan struct{})
	p.AddFunction("test", "gate", func(proc Process, args []interface{}) (interface{}, error) {
		select {
		case <-gate:
			return "opened", nil
		case <-proc.Context().Done():
			return nil, proc.Context().Err()
		}
	})
	p.AddFunction("test", "later", func(proc Process, args []interface{}) (interface{}, error) {
		<-gate
		_, err := io.WriteString(proc.Stdout(), "later\n")
		return nil, err
	})
	return gate
}

func waitStatus(t *testing.T, j *Job, status JobStatus) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return j.Status() == status
	}, 5*time.Second, time.Millisecond, "waiting for %v", status)
}

func TestJob_foregroundLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	var log transitionLog
	env.session.SetJobListener(log.record)

	_, err := env.run(t, "echo one | cat")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(log.all()) == 2
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, []transition{
		{1, Created, Foreground},
		{1, Foreground, Done},
	}, log.all())
	assert.Empty(t, env.session.Jobs())
}

func TestJob_resultIsStable(t *testing.T) {
	env := newTestEnv(t, "")
	gate := registerGate(env.proc)

	_, err := env.run(t, "gate &")
	require.NoError(t, err)

	jobs := env.session.Jobs()
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Nil(t, job.Result())
	assert.Equal(t, "gate", job.Command())

	close(gate)
	waitStatus(t, job, Done)

	first := job.Result()
	require.NotNil(t, first)
	assert.Equal(t, "opened", first.Value)
	assert.Same(t, first, job.Result())

	assert.ErrorIs(t, job.Suspend(), ErrJobDone)
	assert.ErrorIs(t, job.Background(), ErrJobDone)
	_, err = job.Foreground()
	assert.ErrorIs(t, err, ErrJobDone)
	_, err = job.Start(Foreground)
	assert.ErrorIs(t, err, ErrJobStarted)
	assert.Equal(t, Done, job.Status())
}

func TestJob_ids(t *testing.T) {
	env := newTestEnv(t, "")
	gate := registerGate(env.proc)

	for i := 0; i < 3; i++ {
		_, err := env.run(t, "gate &")
		require.NoError(t, err)
	}
	jobs := env.session.Jobs()
	require.Len(t, jobs, 3)
	for i, j := range jobs {
		assert.Equal(t, i+1, j.ID())
		assert.Nil(t, j.Parent())
	}

	jobs[1].Interrupt()
	waitStatus(t, jobs[1], Done)
	assert.Equal(t, 130, jobs[1].Result().ExitCode)

	_, err := env.run(t, "gate &")
	require.NoError(t, err)
	ids := []int{}
	for _, j := range env.session.Jobs() {
		ids = append(ids, j.ID())
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, ids, "reuses the lowest free id")

	close(gate)
}

func TestJob_startStatus(t *testing.T) {
	env := newTestEnv(t, "")
	job := env.session.createJob("manual", nil, env.session.Context())

	_, err := job.Start(Suspended)
	assert.EqualError(t, err, "illegal start status: Suspended")
	_, err = job.Start(Done)
	assert.EqualError(t, err, "illegal start status: Done")
	assert.Equal(t, Created, job.Status())
}

func TestJob_suspendAndResume(t *testing.T) {
	env := newTestEnv(t, "")
	gate := registerGate(env.proc)

	_, err := env.run(t, "later &")
	require.NoError(t, err)
	job := env.session.Jobs()[0]
	assert.Equal(t, Background, job.Status())

	close(gate)
	waitStatus(t, job, Suspended)
	assert.Empty(t, env.stdout.String(), "background jobs can't use the terminal")

	res, err := job.Foreground()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, Done, job.Status())
	assert.Equal(t, "later\n", env.stdout.String())
}

func TestJob_backgroundRunsWithoutTerminal(t *testing.T) {
	env := newTestEnv(t, "")
	gate := registerGate(env.proc)

	_, err := env.run(t, "later > out &")
	require.NoError(t, err)
	job := env.session.Jobs()[0]

	close(gate)
	waitStatus(t, job, Done)
	assert.Equal(t, "later\n", env.readFile(t, "/home/test/out"))
}

func TestJob_foregroundBusy(t *testing.T) {
	env := newTestEnv(t, "")
	gate := registerGate(env.proc)

	_, err := env.run(t, "gate &")
	require.NoError(t, err)
	_, err = env.run(t, "gate &")
	require.NoError(t, err)
	jobs := env.session.Jobs()
	require.Len(t, jobs, 2)

	done := make(chan *Result)
	go func() {
		res, _ := jobs[0].Foreground()
		done <- res
	}()
	waitStatus(t, jobs[0], Foreground)
	assert.Same(t, jobs[0], env.session.ForegroundJob())

	_, err = jobs[1].Foreground()
	assert.ErrorIs(t, err, ErrForegroundBusy)

	close(gate)
	select {
	case res := <-done:
		require.NotNil(t, res)
		assert.Equal(t, "opened", res.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("foreground job never finished")
	}
	waitStatus(t, jobs[1], Done)
}

func TestJob_interruptPipeline(t *testing.T) {
	env := newTestEnv(t, "")
	registerGate(env.proc)

	_, err := env.run(t, "gate | cat &")
	require.NoError(t, err)
	job := env.session.Jobs()[0]

	job.Interrupt()
	waitStatus(t, job, Done)
	assert.Empty(t, env.stderr.String(), "interruption isn't reported")
}

func TestJob_interruptedPipelineError(t *testing.T) {
	env := newTestEnv(t, "")
	registerGate(env.proc)

	done := make(chan error, 1)
	go func() {
		_, err := env.session.Execute("gate | cat")
		done <- err
	}()

	var job *Job
	require.Eventually(t, func() bool {
		job = env.session.ForegroundJob()
		return job != nil
	}, 5*time.Second, time.Millisecond)
	job.Interrupt()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errInterrupted)
		assert.NotErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(5 * time.Second):
		t.Fatal("interrupted pipeline never finished")
	}
	assert.Equal(t, 130, env.session.ExitCode())
}

func TestJob_interruptReadingTerminal(t *testing.T) {
	env := newTestEnv(t, "")
	stdin, feed := io.Pipe()
	session, err := env.proc.CreateSession(stdin, env.stdout, env.stderr)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := session.Execute("cat")
		done <- err
	}()

	var job *Job
	require.Eventually(t, func() bool {
		job = session.ForegroundJob()
		return job != nil
	}, 5*time.Second, time.Millisecond)
	job.Interrupt()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errInterrupted)
	case <-time.After(5 * time.Second):
		t.Fatal("interrupted job still blocked on the terminal")
	}
	assert.Equal(t, Done, job.Status())
	assert.Equal(t, 130, job.Result().ExitCode)
	assert.Equal(t, 130, session.ExitCode())

	// input typed after the interrupt goes to the next reader
	go func() {
		io.WriteString(feed, "kept\n")
		feed.Close()
	}()
	_, err = session.Execute("cat")
	require.NoError(t, err)
	assert.Equal(t, "kept\n", env.stdout.String())
}

func TestJob_sessionCloseInterrupts(t *testing.T) {
	env := newTestEnv(t, "")
	registerGate(env.proc)

	_, err := env.run(t, "gate &")
	require.NoError(t, err)
	job := env.session.Jobs()[0]

	env.session.Close()
	waitStatus(t, job, Done)
}

func TestJob_Describe(t *testing.T) {
	env := newTestEnv(t, "")
	job := env.session.createJob("echo hi | cat", nil, env.session.Context())

	assert.Equal(t, "[1] Created    echo hi | cat", job.Describe(Line))
	assert.Equal(t, "[1] Created    echo hi | cat", env.session.Format(job, Inspect))
}
