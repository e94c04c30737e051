package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/josephlewis42/pipesh/core/expand"
	"github.com/josephlewis42/pipesh/core/parser"
	"github.com/josephlewis42/pipesh/core/scanner"
	"github.com/spf13/afero"
)

// frame is the evaluation context of a program: the streams it writes to,
// the job it runs under and, inside closures, the call arguments.
type frame struct {
	session *Session
	job     *Job
	ctx     context.Context

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// capturing is set while the output is collected by $(...) or ( ... )
	capturing bool
	// args is non-nil inside closures
	args []interface{}

	exitCode atomic.Int32
}

var (
	_ Process          = (*frame)(nil)
	_ expand.Evaluator = (*frame)(nil)
)

// frameFor creates a frame that runs with the streams of proc.
func frameFor(s *Session, proc Process) *frame {
	if proc == nil {
		return s.topFrame()
	}
	f := &frame{
		session: s,
		job:     proc.Job(),
		ctx:     proc.Context(),
		stdin:   proc.Stdin(),
		stdout:  proc.Stdout(),
		stderr:  proc.Stderr(),
	}
	if parent, ok := proc.(*frame); ok {
		f.capturing = parent.capturing
		f.args = parent.args
	}
	return f
}

func (f *frame) child() *frame {
	return &frame{
		session:   f.session,
		job:       f.job,
		ctx:       f.ctx,
		stdin:     f.stdin,
		stdout:    f.stdout,
		stderr:    f.stderr,
		capturing: f.capturing,
		args:      f.args,
	}
}

func (f *frame) Session() *Session { return f.session }
func (f *frame) Job() *Job { return f.job }
func (f *frame) Stdin() io.Reader { return f.stdin }
func (f *frame) Stdout() io.Writer { return f.stdout }
func (f *frame) Stderr() io.Writer { return f.stderr }

func (f *frame) Context() context.Context {
	if f.ctx == nil {
		return context.Background()
	}
	return f.ctx
}

func (f *frame) SetError(code int) {
	f.exitCode.Store(int32(code))
}

func (f *frame) ExitCode() int {
	return int(f.exitCode.Load())
}

func (f *frame) CurrentDir() string {
	return f.session.CurrentDir()
}

func (f *frame) Fs() afero.Fs {
	return f.session.Fs()
}

// Get resolves closure parameters before session variables.
func (f *frame) Get(name string) (interface{}, error) {
	if f.args != nil {
		switch {
		case name == "args":
			return expand.ArgList(append([]interface{}(nil), f.args...)), nil
		case name == "argv":
			return append([]interface{}{}, f.args...), nil
		case name == "it":
			if len(f.args) > 0 {
				return f.args[0], nil
			}
			return nil, nil
		case len(name) == 1 && name[0] >= '1' && name[0] <= '9':
			if i := int(name[0] - '1'); i < len(f.args) {
				return f.args[i], nil
			}
			return nil, nil
		}
	}
	return f.session.get(name, f)
}

func (f *frame) Put(name string, value interface{}) {
	f.session.Put(name, value)
}

func (f *frame) Execute(line string) (interface{}, error) {
	return f.execute(line)
}

func (f *frame) execute(line string) (interface{}, error) {
	prog, err := parser.ParseString(line)
	if err != nil {
		return nil, err
	}
	return f.runProgram(prog)
}

// Eval runs a $(...) substitution.
func (f *frame) Eval(program scanner.Token) (interface{}, error) {
	prog, err := parser.Parse(program)
	if err != nil {
		return nil, err
	}
	return f.evalProgram(prog)
}

// Expr runs a %(...) substitution.
func (f *frame) Expr(text scanner.Token) (interface{}, error) {
	return evalExpr(text.String(), f.Get)
}

// runProgram runs each pipeline in turn. An error stops the program unless
// the next operator is && or ||, which then decide whether the following
// pipeline runs based on the outcome.
func (f *frame) runProgram(prog *parser.Program) (interface{}, error) {
	var (
		last    interface{}
		lastErr error
		skip    bool
	)

	for _, step := range prog.Steps {
		if skip {
			skip = false
			// a skipped pipeline keeps the previous outcome for the next operator
			if step.Op == "&&" || step.Op == "||" {
				skip = (step.Op == "&&") != f.succeeded(lastErr)
			}
			continue
		}
		res, err := f.runPipeline(step.Pipeline, step.Op == "&")
		switch {
		case err != nil:
			lastErr = err
			last = nil
			f.SetError(1)
		case res == nil:
			lastErr = nil
			last = nil
			f.SetError(0)
		default:
			lastErr = res.Err
			last = res.Value
			f.SetError(res.ExitCode)
		}

		switch step.Op {
		case "&&":
			skip = !f.succeeded(lastErr)
		case "||":
			skip = f.succeeded(lastErr)
		default:
			if lastErr != nil {
				return nil, lastErr
			}
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return last, nil
}

func (f *frame) succeeded(err error) bool {
	return err == nil && f.ExitCode() == 0
}

// runPipeline starts a job for pl and waits for it unless background is
// set. The result is nil when the job didn't finish in the foreground.
func (f *frame) runPipeline(pl *parser.Pipeline, background bool) (*Result, error) {
	job := f.session.createJob(pl.Text.String(), f.job, f.Context())

	pipes := make([]*Pipe, len(pl.Statements))
	for i, st := range pl.Statements {
		pipes[i] = newPipe(job, f, st)
	}
	for i := 0; i+1 < len(pipes); i++ {
		r, w := io.Pipe()
		pipes[i].connect(1, w)
		if pl.Pipes[i] == "|&" {
			pipes[i].connect(2, w)
		}
		pipes[i+1].connect(0, r)
	}
	job.pipes = pipes

	status := Foreground
	if background {
		status = Background
	}
	res, err := job.Start(status)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// lockedBuffer collects the output of a substitution.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// evalProgram runs prog capturing its output. The value is the program's
// result or, if that's nil, its output without trailing newlines.
func (f *frame) evalProgram(prog *parser.Program) (interface{}, error) {
	out := &lockedBuffer{}
	c := f.child()
	c.stdout = out
	c.capturing = true

	v, err := c.runProgram(prog)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return strings.TrimRight(out.String(), "\n"), nil
	}
	return v, nil
}

// executeStatement evaluates the words of st and calls the result.
func (f *frame) executeStatement(st *parser.Statement) (interface{}, error) {
	if v, _ := f.Get(VarEcho); isTrue(v) {
		fmt.Fprintf(f.stderr, "+%s\n", st.Text)
	}

	words := st.Words
	if len(words) == 0 {
		return nil, nil
	}

	if isAssignment(words) {
		name := expand.Unquote(words[0].String())
		if len(words) == 2 {
			f.Put(name, nil)
			return nil, nil
		}
		values, bare, err := f.evalCall(words[2:])
		if err != nil {
			return nil, err
		}
		var value interface{}
		switch {
		case len(values) == 1 && bare:
			value = coerce(values[0].(string))
		case len(values) == 1:
			value = values[0]
		default:
			if value, err = f.call(values, bare); err != nil {
				return nil, err
			}
		}
		f.Put(name, value)
		return value, nil
	}

	values, bare, err := f.evalCall(words)
	if err != nil {
		return nil, err
	}
	return f.call(values, bare)
}

func isAssignment(words []*parser.Word) bool {
	return len(words) >= 2 &&
		words[0].Kind == parser.Plain &&
		words[1].Kind == parser.Plain &&
		words[1].String() == "="
}

// evalCall evaluates the words of a call. bare is set when the first word
// is a literal name that expansion left unchanged.
func (f *frame) evalCall(words []*parser.Word) (values []interface{}, bare bool, err error) {
	head := words[0]
	if head.Kind == parser.Plain {
		v, err := expand.Expand(head.Token, f)
		if err != nil {
			return nil, false, err
		}
		if s, ok := v.(string); ok && s == head.String() {
			bare = true
			values = append(values, s)
		} else {
			values = appendValue(values, v)
		}
	} else {
		v, err := f.evalWord(head)
		if err != nil {
			return nil, false, err
		}
		values = appendValue(values, v)
	}

	rest, err := f.evalWords(words[1:])
	if err != nil {
		return nil, false, err
	}
	return append(values, rest...), bare, nil
}

func (f *frame) evalWords(words []*parser.Word) ([]interface{}, error) {
	var out []interface{}
	for _, w := range words {
		v, err := f.evalWord(w)
		if err != nil {
			return nil, err
		}
		out = appendValue(out, v)
	}
	return out, nil
}

func appendValue(out []interface{}, v interface{}) []interface{} {
	if list, ok := v.(expand.ArgList); ok {
		return append(out, list...)
	}
	return append(out, v)
}

func (f *frame) evalWord(w *parser.Word) (interface{}, error) {
	switch w.Kind {
	case parser.Closure:
		return &Closure{session: f.session, program: w.Program, text: w.String()}, nil
	case parser.Sequence:
		return f.evalProgram(w.Program)
	case parser.Array:
		return f.evalArray(w)
	}

	v, err := expand.Expand(w.Token, f)
	if err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok && s == w.String() {
		return coerce(s), nil
	}
	return v, nil
}

func (f *frame) evalArray(w *parser.Word) (interface{}, error) {
	if w.List == nil {
		m := make(map[string]interface{}, len(w.Keys))
		for i, k := range w.Keys {
			key, err := expand.Expand(k.Token, f)
			if err != nil {
				return nil, err
			}
			v, err := f.evalWord(w.Values[i])
			if err != nil {
				return nil, err
			}
			if list, ok := v.(expand.ArgList); ok {
				v = []interface{}(list)
			}
			m[expand.Stringify(key)] = v
		}
		return m, nil
	}

	list, err := f.evalWords(w.List)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []interface{}{}
	}
	return list, nil
}

// call runs a statement whose words evaluated to values.
func (f *frame) call(values []interface{}, bare bool) (interface{}, error) {
	if len(values) == 0 {
		return nil, nil
	}

	head, args := values[0], values[1:]
	switch h := head.(type) {
	case nil:
		if len(args) == 0 {
			return nil, nil
		}
		return nil, evalErrorf("command name evaluates to null")
	case string:
		return f.executeCommand(h, args, bare)
	case Function:
		return h.Execute(f, args)
	}

	if len(args) == 0 {
		return head, nil
	}
	return invokeMethod(f, head, expand.Stringify(args[0]), args[1:])
}

func (f *frame) executeCommand(name string, args []interface{}, bare bool) (interface{}, error) {
	v, err := f.Get(name)
	if err != nil {
		return nil, err
	}
	if fn, ok := v.(Function); ok {
		return fn.Execute(f, args)
	}

	if fn := f.session.Command(name); fn != nil {
		return fn.Execute(f, args)
	}

	if len(args) == 0 {
		if !bare {
			return name, nil
		}
		if lit := coerce(name); !isString(lit) {
			return lit, nil
		}
	}

	if fn := f.defaultCommand(); fn != nil {
		return fn.Execute(f, append([]interface{}{name}, args...))
	}
	return nil, &CommandNotFoundError{Name: name}
}

func (f *frame) defaultCommand() Function {
	if v, _ := f.Get("default"); v != nil {
		if fn, ok := v.(Function); ok {
			return fn
		}
	}
	return f.session.Command("default")
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

// coerce converts unquoted literals: null, true, false and numbers written
// in their canonical form.
func coerce(s string) interface{} {
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil && strconv.Itoa(n) == s {
		return n
	}
	if strings.Contains(s, ".") && len(s) > 0 && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9')) {
		if n, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(n, 'f', -1, 64) == s {
			return n
		}
	}
	return s
}

func isTrue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case string:
		return t != "" && t != "false" && t != "0"
	}
	return true
}
