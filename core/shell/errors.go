package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/josephlewis42/pipesh/core/expand"
	"github.com/josephlewis42/pipesh/core/scanner"
)

var (
	// ErrSessionClosed is returned when using a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrProcessorStopped is returned when creating sessions on a stopped
	// processor.
	ErrProcessorStopped = errors.New("processor is stopped")
	// ErrJobDone is returned when controlling a finished job.
	ErrJobDone = errors.New("job is finished")
	// ErrJobStarted is returned when starting a job twice.
	ErrJobStarted = errors.New("job already started")
	// ErrForegroundBusy is returned when another job holds the foreground.
	ErrForegroundBusy = errors.New("a job is already in foreground")
)

// EvalError reports a failure evaluating a statement, for example an
// unknown command or a value that can't be converted.
type EvalError struct {
	Msg string
	Err error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

func evalErrorf(format string, args ...interface{}) *EvalError {
	return &EvalError{Msg: fmt.Sprintf(format, args...)}
}

// CommandNotFoundError is returned when a bare word names no command.
type CommandNotFoundError struct {
	Name string
}

func (e *CommandNotFoundError) Error() string {
	return "command not found: " + e.Name
}

// ErrorKind names the class of err used in stage diagnostics.
func ErrorKind(err error) string {
	var (
		eof      *scanner.EOFError
		syntax   *scanner.SyntaxError
		pattern  *expand.PatternError
		argument *expand.ArgumentError
		noMatch  *expand.NoMatchError
		path     *fs.PathError
		eval     *EvalError
		notFound *CommandNotFoundError
	)

	switch {
	case errors.As(err, &eof):
		return "EOFError"
	case errors.As(err, &syntax), errors.As(err, &pattern):
		return "SyntaxError"
	case errors.As(err, &argument):
		return "ArgumentError"
	case errors.As(err, &noMatch), errors.As(err, &path), errors.Is(err, io.ErrUnexpectedEOF):
		return "IOError"
	case errors.As(err, &eval), errors.As(err, &notFound):
		return "EvalError"
	default:
		return "Error"
	}
}

// reportedError marks an error a stage already wrote to its error stream.
type reportedError struct {
	err error
}

func (r *reportedError) Error() string {
	return r.err.Error()
}

func (r *reportedError) Unwrap() error {
	return r.err
}

// IsReported reports whether err was already printed as a stage diagnostic.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// IsInterruption reports whether err is how a stage sees its job being
// interrupted or its reader going away.
func IsInterruption(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, errInterrupted)
}

var errInterrupted = errors.New("interrupted")
