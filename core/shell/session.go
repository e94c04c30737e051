package shell

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/josephlewis42/pipesh/core/expand"
	"github.com/josephlewis42/pipesh/core/expr"
	"github.com/josephlewis42/pipesh/core/vos"
)

// Variables with special meaning.
const (
	// VarVariables, VarCommands and VarConstants list names and are computed
	// on every read.
	VarVariables = ".variables"
	VarCommands  = ".commands"
	VarConstants = ".constants"

	// VarFormatPipe set to false stops printing mid-pipeline results.
	VarFormatPipe = ".FormatPipe"
	// VarScope is the colon separated scope path for bare command names.
	VarScope = "SCOPE"
	// VarEcho traces every statement to stderr when true.
	VarEcho = "echo"
	// VarPWD mirrors the current directory in the environment.
	VarPWD = "PWD"
)

// JobListener is called on every job status change.
type JobListener func(job *Job, previous, current JobStatus)

// Session holds the variables, current directory and jobs of one user of
// a Processor.
type Session struct {
	id        string
	processor *Processor
	terminal  *vos.Terminal
	env       *vos.MapEnv
	fs        vos.VFS

	mu        sync.RWMutex
	variables map[string]interface{}
	dir       string

	jobsMu      sync.Mutex
	jobs        []*Job
	jobListener JobListener

	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
	exitCode atomic.Int32
}

func newSession(p *Processor, terminal *vos.Terminal, dir string, env *vos.MapEnv) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        newSessionID(),
		processor: p,
		terminal:  terminal,
		env:       env,
		fs:        p.opts.Fs,
		variables: make(map[string]interface{}),
		dir:       dir,
		ctx:       ctx,
		cancel:    cancel,
	}
	if p.opts.NoFormatPipe {
		s.variables[VarFormatPipe] = false
	}
	_ = env.Setenv(VarPWD, dir)
	return s
}

// ID uniquely identifies the session.
func (s *Session) ID() string {
	return s.id
}

// Processor returns the registry the session belongs to.
func (s *Session) Processor() *Processor {
	return s.processor
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Terminal returns the streams the session was created with.
func (s *Session) Terminal() *vos.Terminal {
	return s.terminal
}

// Env returns the string environment handed to commands.
func (s *Session) Env() vos.VEnv {
	return s.env
}

// Fs returns the filesystem paths are resolved in.
func (s *Session) Fs() vos.VFS {
	return s.fs
}

// Get reads a variable. Lookups go through the computed names, processor
// constants, function variables stored as #name, plain variables, the
// environment and finally scope:name command references.
func (s *Session) Get(name string) (interface{}, error) {
	return s.get(name, s.topFrame())
}

func (s *Session) get(name string, proc Process) (interface{}, error) {
	switch name {
	case VarVariables:
		return s.variableNames(), nil
	case VarCommands:
		return s.processor.Commands(), nil
	case VarConstants:
		return s.processor.constantNames(), nil
	}

	if v, ok := s.processor.constant(name); ok {
		return v, nil
	}

	s.mu.RLock()
	thunk, isThunk := s.variables["#"+name]
	value, ok := s.variables[name]
	s.mu.RUnlock()

	if isThunk {
		if fn, ok := thunk.(Function); ok {
			return fn.Execute(proc, nil)
		}
		return thunk, nil
	}
	if ok {
		return value, nil
	}
	if env, ok := s.env.LookupEnv(name); ok {
		return env, nil
	}
	if strings.Contains(name, ":") {
		if fn := s.processor.GetCommand(name, s.scopePath()); fn != nil {
			return fn, nil
		}
	}
	return nil, nil
}

// Put sets a variable, a nil value removes it.
func (s *Session) Put(name string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.variables, name)
		return
	}
	s.variables[name] = value
}

func (s *Session) variableNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.variables))
	for k := range s.variables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Session) scopePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.variables[VarScope]; ok {
		return expand.Stringify(v)
	}
	return ""
}

// ScopePath returns the colon separated scopes searched for bare command
// names, the SCOPE variable if set.
func (s *Session) ScopePath() string {
	if sp := s.scopePath(); sp != "" {
		return sp
	}
	return s.processor.opts.ScopePath
}

// Command resolves a command name, names without a scope search the scope
// path.
func (s *Session) Command(name string) Function {
	if !strings.Contains(name, ":") {
		name = "*:" + name
	}
	return s.processor.GetCommand(name, s.scopePath())
}

func (s *Session) topFrame() *frame {
	return &frame{
		session: s,
		ctx:     s.ctx,
		stdin:   s.terminal.In,
		stdout:  s.terminal.Out,
		stderr:  s.terminal.Err,
	}
}

// Execute parses and runs line. Listeners registered on the processor are
// notified before and after.
func (s *Session) Execute(line string) (interface{}, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	s.processor.beforeExecute(s, line)
	f := s.topFrame()
	value, err := f.execute(line)
	s.exitCode.Store(int32(f.ExitCode()))
	s.processor.afterExecute(s, line, value, err)
	return value, err
}

// ExitCode returns the exit code of the last pipeline run by Execute.
func (s *Session) ExitCode() int {
	return int(s.exitCode.Load())
}

// Expr evaluates an arithmetic expression with the session's variables.
func (s *Session) Expr(text string) (interface{}, error) {
	return evalExpr(text, s.Get)
}

func evalExpr(text string, get func(string) (interface{}, error)) (interface{}, error) {
	return expr.Eval(text, func(name string) (string, bool) {
		v, err := get(name)
		if err != nil || v == nil {
			return "", false
		}
		return expand.Stringify(v), true
	})
}

// CurrentDir returns the directory relative paths resolve against.
func (s *Session) CurrentDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

// SetCurrentDir changes directory, dir may be relative.
func (s *Session) SetCurrentDir(dir string) error {
	target := vos.Resolve(s.CurrentDir(), dir)
	ok, err := vos.IsDir(s.fs, target)
	if err != nil {
		return err
	}
	if !ok {
		return &fs.PathError{Op: "chdir", Path: target, Err: syscall.ENOTDIR}
	}

	s.mu.Lock()
	s.dir = target
	s.mu.Unlock()
	_ = s.env.Setenv(VarPWD, target)
	return nil
}

func (s *Session) createJob(command string, parent *Job, ctx context.Context) *Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	id := 1
	for s.jobIDTaken(id) {
		id++
	}

	j := newJob(s, id, parent, command, ctx)
	if parent == nil {
		s.jobs = append(s.jobs, j)
	}
	return j
}

func (s *Session) jobIDTaken(id int) bool {
	for _, j := range s.jobs {
		if j.id == id {
			return true
		}
	}
	return false
}

func (s *Session) jobChanged(j *Job, previous, current JobStatus) {
	s.jobsMu.Lock()
	listener := s.jobListener
	if current == Done {
		for i, existing := range s.jobs {
			if existing == j {
				s.jobs = append(s.jobs[:i:i], s.jobs[i+1:]...)
				break
			}
		}
	}
	s.jobsMu.Unlock()

	if listener != nil {
		safeNotify(func() { listener(j, previous, current) })
	}
}

// Jobs returns the unfinished top level jobs.
func (s *Session) Jobs() []*Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

// Job finds a top level job by id.
func (s *Session) Job(id int) (*Job, error) {
	for _, j := range s.Jobs() {
		if j.id == id {
			return j, nil
		}
	}
	return nil, fmt.Errorf("no such job: %d", id)
}

// ForegroundJob returns the top level job holding the foreground, or nil.
func (s *Session) ForegroundJob() *Job {
	for _, j := range s.Jobs() {
		if j.Status() == Foreground {
			return j
		}
	}
	return nil
}

// SetJobListener replaces the job status listener.
func (s *Session) SetJobListener(l JobListener) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	s.jobListener = l
}

// Close interrupts running jobs and detaches the session from its
// processor. Later calls do nothing.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.cancel()
	for _, j := range s.Jobs() {
		j.Interrupt()
	}
	s.processor.untrack(s)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
