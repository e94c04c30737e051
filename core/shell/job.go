package shell

import (
	"context"
	"fmt"
	"sync"

	"github.com/josephlewis42/pipesh/core/vos"
	"golang.org/x/sync/errgroup"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus int

const (
	Created JobStatus = iota
	Suspended
	Background
	Foreground
	Done
)

func (s JobStatus) String() string {
	switch s {
	case Created:
		return "Created"
	case Suspended:
		return "Suspended"
	case Background:
		return "Background"
	case Foreground:
		return "Foreground"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("JobStatus(%d)", int(s))
	}
}

// Result is the outcome of a finished job, taken from its last stage.
type Result struct {
	Value    interface{}
	Err      error
	ExitCode int
	// PipeErr is the first failure of an earlier stage.
	PipeErr error
}

// Success reports whether the job finished without error and exit code 0.
func (r *Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Job runs one pipeline. Jobs started from the top level of a session are
// listed in Session.Jobs, jobs started by running stages have a parent and
// follow its foreground state.
type Job struct {
	id      int
	command string
	session *Session
	parent  *Job
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	status   JobStatus
	started  bool
	result   *Result
	pipes    []*Pipe
	children []*Job
}

func newJob(s *Session, id int, parent *Job, command string, ctx context.Context) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		id:      id,
		command: command,
		session: s,
		parent:  parent,
		ctx:     ctx,
		cancel:  cancel,
	}
	j.cond = sync.NewCond(&j.mu)

	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, j)
		parent.mu.Unlock()
	}
	return j
}

func (j *Job) ID() int { return j.id }
func (j *Job) Command() string { return j.command }
func (j *Job) Session() *Session { return j.session }
func (j *Job) Parent() *Job { return j.parent }
func (j *Job) Context() context.Context { return j.ctx }

// Status returns the current state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Result returns the outcome once the job is Done, nil before.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Processes returns the stages of the pipeline.
func (j *Job) Processes() []*Pipe {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*Pipe(nil), j.pipes...)
}

// Root returns the top-level job j is nested in, j itself for top-level
// jobs.
func (j *Job) Root() *Job {
	if j == nil {
		return nil
	}
	r := j
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (j *Job) setStatus(status JobStatus) error {
	j.mu.Lock()
	previous := j.status
	if previous == Done {
		j.mu.Unlock()
		return ErrJobDone
	}
	j.status = status
	j.cond.Broadcast()
	j.mu.Unlock()

	if previous != status {
		j.session.jobChanged(j, previous, status)
	}
	return nil
}

// Suspend stops the job at the next read or write of any of its stages.
func (j *Job) Suspend() error {
	return j.setStatus(Suspended)
}

// Background resumes the job without holding the foreground. Stages that
// touch the session's terminal get suspended.
func (j *Job) Background() error {
	return j.setStatus(Background)
}

// Foreground resumes the job and waits until it leaves the foreground.
func (j *Job) Foreground() (*Result, error) {
	return j.ForegroundFrom(nil)
}

// ForegroundFrom is Foreground called from a running job. The caller's job
// may hold the foreground while handing it over.
func (j *Job) ForegroundFrom(current *Job) (*Result, error) {
	if j.Status() == Done {
		return nil, ErrJobDone
	}
	if j.parent == nil {
		if fg := j.session.ForegroundJob(); fg != nil && fg != j && (current == nil || fg != current.Root()) {
			return nil, ErrForegroundBusy
		}
	}
	if err := j.setStatus(Foreground); err != nil {
		return nil, err
	}
	return j.Await(), nil
}

// Await blocks while the job holds the foreground. It returns the result
// if the job finished, nil if it was suspended or sent to the background.
func (j *Job) Await() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.status == Foreground {
		j.cond.Wait()
	}
	return j.result
}

// Start runs the pipeline. With Foreground it waits like Await, with
// Background it returns at once.
func (j *Job) Start(status JobStatus) (*Result, error) {
	if status != Foreground && status != Background {
		return nil, fmt.Errorf("illegal start status: %v", status)
	}

	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return nil, ErrJobStarted
	}
	if j.status == Done {
		j.mu.Unlock()
		return nil, ErrJobDone
	}
	j.started = true
	j.mu.Unlock()

	if err := j.setStatus(status); err != nil {
		return nil, err
	}
	go j.run()

	if status == Background {
		return nil, nil
	}
	return j.Await(), nil
}

func (j *Job) run() {
	pipes := j.Processes()
	results := make([]Result, len(pipes))

	var g errgroup.Group
	for i, p := range pipes {
		i, p := i, p
		g.Go(func() error {
			results[i] = p.run()
			return nil
		})
	}
	_ = g.Wait()

	res := Result{}
	if len(results) > 0 {
		res = results[len(results)-1]
	}
	// a stage may see a plain end of input when its neighbour is interrupted
	if j.ctx.Err() != nil && (res.Err == nil || IsInterruption(res.Err)) {
		res.Err, res.ExitCode = errInterrupted, 130
	}
	for _, r := range results[:max(len(results)-1, 0)] {
		if r.Err != nil && !IsInterruption(r.Err) {
			res.PipeErr = r.Err
			break
		}
	}
	j.finish(&res)
}

func (j *Job) finish(res *Result) {
	j.mu.Lock()
	previous := j.status
	j.result = res
	j.status = Done
	j.cond.Broadcast()
	j.mu.Unlock()

	j.cancel()
	j.session.jobChanged(j, previous, Done)
}

// Interrupt stops every stage of the job and of the jobs its stages
// started. Interrupted stages finish with exit code 130.
func (j *Job) Interrupt() {
	j.cancel()

	j.mu.Lock()
	pipes := append([]*Pipe(nil), j.pipes...)
	children := append([]*Job(nil), j.children...)
	j.cond.Broadcast()
	j.mu.Unlock()

	for _, p := range pipes {
		p.interrupt(errInterrupted)
	}
	for _, c := range children {
		c.Interrupt()
	}
}

// checkSuspend runs before every read or write of a stage stream. Touching
// the session's terminal from the background suspends the job, and any
// access waits while the job is suspended.
func (j *Job) checkSuspend(stream interface{}) error {
	r := j.Root()

	if vos.IsTerminal(stream) {
		r.mu.Lock()
		suspend := r.status == Background
		r.mu.Unlock()
		if suspend {
			_ = r.Suspend()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.status == Suspended {
		if j.ctx.Err() != nil {
			return errInterrupted
		}
		r.cond.Wait()
	}
	if j.ctx.Err() != nil {
		return errInterrupted
	}
	return nil
}

// Describe implements Describable.
func (j *Job) Describe(level int) string {
	return fmt.Sprintf("[%d] %-10s %s", j.id, j.Status(), j.command)
}

func (j *Job) String() string {
	return j.Describe(Line)
}
