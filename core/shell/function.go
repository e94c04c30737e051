package shell

import (
	"context"
	"io"

	"github.com/josephlewis42/pipesh/core/parser"
)

// Function is anything a statement can call.
type Function interface {
	Execute(proc Process, args []interface{}) (interface{}, error)
}

// FunctionFunc adapts a function to a Function.
type FunctionFunc func(proc Process, args []interface{}) (interface{}, error)

func (f FunctionFunc) Execute(proc Process, args []interface{}) (interface{}, error) {
	return f(proc, args)
}

// Process is the environment a Function runs in: the session, the job and
// the stage's standard streams.
type Process interface {
	Session() *Session
	// Job returns the job running the statement, nil outside of jobs.
	Job() *Job
	Context() context.Context

	Stdin() io.Reader
	Stdout() io.Writer
	Stderr() io.Writer

	// SetError sets the exit code without failing the statement.
	SetError(code int)
	ExitCode() int

	// Get and Put read and write variables, including closure parameters.
	Get(name string) (interface{}, error)
	Put(name string, value interface{})

	// Execute runs a program with the process' streams.
	Execute(line string) (interface{}, error)
}

// Closure is a { ... } block. Calling it runs its program with the call
// arguments bound to $1 to $9, $it, $args and $argv.
type Closure struct {
	session *Session
	program *parser.Program
	text    string
}

var _ Function = (*Closure)(nil)

// NewClosure parses body into a callable closure.
func (s *Session) NewClosure(body string) (*Closure, error) {
	prog, err := parser.ParseString(body)
	if err != nil {
		return nil, err
	}
	return &Closure{session: s, program: prog, text: "{ " + body + " }"}, nil
}

// Execute implements Function.
func (c *Closure) Execute(proc Process, args []interface{}) (interface{}, error) {
	f := frameFor(c.session, proc)
	f.args = args
	if args == nil {
		f.args = []interface{}{}
	}

	value, err := f.runProgram(c.program)
	if code := f.ExitCode(); code != 0 && proc != nil {
		proc.SetError(code)
	}
	return value, err
}

func (c *Closure) String() string {
	return c.text
}
