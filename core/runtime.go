package core

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/josephlewis42/pipesh/commands"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/vos"
)

// Runtime hosts sessions built from a configuration: it owns the processor,
// the filesystem and the execution event log.
type Runtime struct {
	configuration *config.Configuration
	processor     *shell.Processor
	logger        *logger.Logger
	toClose       listCloser

	mu       sync.Mutex
	sessions map[*shell.Session]*sessionState
}

type sessionState struct {
	log     *logger.SessionLogger
	started time.Time
}

var _ shell.ExecuteListener = (*Runtime)(nil)

// NewRuntime sets up the filesystem, processor and event log described by
// configuration.
func NewRuntime(configuration *config.Configuration) (*Runtime, error) {
	var toClose listCloser

	fsOpts := configuration.FsOptions()
	vfs, err := vos.NewFs(fsOpts)
	if err != nil {
		return nil, fmt.Errorf("couldn't set up filesystem: %w", err)
	}

	var dir string
	if fsOpts.Kind == vos.FsMemory || fsOpts.Root != "" {
		dir = "/"
	}

	processor := shell.NewProcessor(shell.Options{
		ShellName:    configuration.ShellName,
		Fs:           vfs,
		Dir:          dir,
		Env:          append(os.Environ(), configuration.Env...),
		ScopePath:    configuration.ScopePath,
		NoFormatPipe: !configuration.FormatPipe,
	})
	commands.Register(processor)
	for name, value := range configuration.Constants {
		processor.AddConstant(name, normalizeConstant(value))
	}

	eventLogger := &logger.Logger{
		Record: func(*logger.LogEntry) error { return nil },
	}
	if configuration.EventLog != "" {
		fd, err := configuration.OpenEventLog()
		if err != nil {
			return nil, fmt.Errorf("couldn't open event log: %w", err)
		}
		toClose = append(toClose, fd)
		eventLogger = logger.NewJsonLinesLogRecorder(fd)
	}

	runtime := &Runtime{
		configuration: configuration,
		processor:     processor,
		logger:        eventLogger,
		toClose:       toClose,
		sessions:      make(map[*shell.Session]*sessionState),
	}
	processor.AddListener(runtime)
	return runtime, nil
}

// normalizeConstant turns whole numbers decoded from the configuration into
// ints so they behave like integer literals.
func normalizeConstant(value interface{}) interface{} {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) <= math.MaxInt32 {
			return int(v)
		}
		return v
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeConstant(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = normalizeConstant(item)
		}
		return out
	default:
		return value
	}
}

// Configuration is the configuration the runtime was built from.
func (r *Runtime) Configuration() *config.Configuration {
	return r.configuration
}

// Processor is the processor shared by every session.
func (r *Runtime) Processor() *shell.Processor {
	return r.processor
}

func (r *Runtime) state(session *shell.Session) *sessionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[session]
	if !ok {
		state = &sessionState{log: r.logger.NewSession(session.ID())}
		r.sessions[session] = state
	}
	return state
}

// NewSession starts a session on the given streams and runs the startup
// lines. Startup failures are reported on the session's stderr. Job
// transitions are logged then forwarded to listeners.
func (r *Runtime) NewSession(vio vos.VIO, listeners ...shell.JobListener) (*shell.Session, error) {
	session, err := r.processor.CreateSession(vio.Stdin(), vio.Stdout(), vio.Stderr())
	if err != nil {
		return nil, err
	}

	state := r.state(session)
	if err := state.log.SessionStart(session.CurrentDir()); err != nil {
		log.Printf("couldn't log session start: %v", err)
	}
	session.SetJobListener(func(job *shell.Job, previous, current shell.JobStatus) {
		if err := state.log.JobStatus(job.ID(), job.Command(), previous.String(), current.String()); err != nil {
			log.Printf("couldn't log job status: %v", err)
		}
		for _, l := range listeners {
			l(job, previous, current)
		}
	})

	for _, line := range r.configuration.Startup {
		if _, err := session.Execute(line); err != nil {
			r.ReportError(vio.Stderr(), err)
		}
	}
	return session, nil
}

// EndSession logs the session's final exit code and closes it.
func (r *Runtime) EndSession(session *shell.Session) {
	state := r.state(session)
	if err := state.log.SessionEnd(session.ExitCode()); err != nil {
		log.Printf("couldn't log session end: %v", err)
	}
	session.Close()

	r.mu.Lock()
	delete(r.sessions, session)
	r.mu.Unlock()
}

// Run executes script in a new session and returns its exit code.
func (r *Runtime) Run(vio vos.VIO, script string) int {
	session, err := r.NewSession(vio)
	if err != nil {
		r.ReportError(vio.Stderr(), err)
		return 1
	}
	defer r.EndSession(session)

	if _, err := session.Execute(script); err != nil {
		r.ReportError(vio.Stderr(), err)
		if session.ExitCode() == 0 {
			return 1
		}
	}
	return session.ExitCode()
}

// FormatError renders an error returned by Session.Execute the same way
// stages report their failures.
func (r *Runtime) FormatError(err error) string {
	return fmt.Sprintf("%s: %s: %v", r.processor.ShellName(), shell.ErrorKind(err), err)
}

// ReportError writes err to w unless a stage already reported it.
func (r *Runtime) ReportError(w io.Writer, err error) {
	if err == nil || shell.IsReported(err) {
		return
	}
	fmt.Fprintln(w, r.FormatError(err))
}

// BeforeExecute implements shell.ExecuteListener.
func (r *Runtime) BeforeExecute(session *shell.Session, line string) {
	state := r.state(session)
	r.mu.Lock()
	state.started = time.Now()
	r.mu.Unlock()
}

// AfterExecute implements shell.ExecuteListener.
func (r *Runtime) AfterExecute(session *shell.Session, line string, result interface{}, err error) {
	state := r.state(session)
	r.mu.Lock()
	duration := time.Since(state.started)
	r.mu.Unlock()

	var kind string
	if err != nil {
		kind = shell.ErrorKind(err)
	}
	if lerr := state.log.Execute(line, duration, session.ExitCode(), err, kind); lerr != nil {
		log.Printf("couldn't log execution: %v", lerr)
	}
}

// Close stops every session and releases the event log.
func (r *Runtime) Close() error {
	r.mu.Lock()
	open := make([]*shell.Session, 0, len(r.sessions))
	for session := range r.sessions {
		open = append(open, session)
	}
	r.mu.Unlock()

	for _, session := range open {
		r.EndSession(session)
	}
	r.processor.Stop()
	return r.toClose.Close()
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
