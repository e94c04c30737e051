package shell

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/josephlewis42/pipesh/core/expand"
	"github.com/josephlewis42/pipesh/core/parser"
	"github.com/josephlewis42/pipesh/core/vos"
)

var (
	writeRedirect = regexp.MustCompile(`^(?:([0-9])?|(&)?)>(>)?$`)
	aliasRedirect = regexp.MustCompile(`^([0-9])?>&([0-9])$`)
	readRedirect  = regexp.MustCompile(`^([0-9])?<(>)?$`)
)

// Pipe is one stage of a pipeline. Each stage runs its statement in its
// own goroutine with descriptor slots wired to its neighbours.
type Pipe struct {
	job    *Job
	parent *frame
	stmt   *parser.Statement

	// mu guards the slots against interrupt while redirections are set up
	mu        sync.Mutex
	streams   [vos.MaxStreams]*vos.MultiChannel
	inherited [vos.MaxStreams]bool
	// replaced holds slots the stage created and later aliased away
	replaced  []*vos.MultiChannel
	frame     *frame
}

func newPipe(job *Job, parent *frame, stmt *parser.Statement) *Pipe {
	p := &Pipe{job: job, parent: parent, stmt: stmt}

	in := p.newChannel()
	in.AddReader(parent.stdin, false)
	out := p.newChannel()
	out.AddWriter(parent.stdout, false)
	errs := p.newChannel()
	errs.AddWriter(parent.stderr, false)

	p.streams[0], p.streams[1], p.streams[2] = in, out, errs
	p.inherited[0], p.inherited[1], p.inherited[2] = true, true, true
	return p
}

func (p *Pipe) newChannel() *vos.MultiChannel {
	mc := vos.NewMultiChannel()
	mc.Wait = p.job.checkSuspend
	mc.Context = p.job.ctx
	return mc
}

// connect replaces slot fd with one end of a pipe to a neighbouring stage.
func (p *Pipe) connect(fd int, stream io.Closer) {
	mc := p.newChannel()
	if r, ok := stream.(io.Reader); ok && fd == 0 {
		mc.AddReader(r, true)
	} else if w, ok := stream.(io.Writer); ok {
		mc.AddWriter(w, true)
	}
	p.replace(fd, mc)
}

func (p *Pipe) replace(fd int, mc *vos.MultiChannel) {
	if old := p.streams[fd]; old != nil && !p.inherited[fd] {
		p.replaced = append(p.replaced, old)
	}
	p.streams[fd] = mc
	p.inherited[fd] = false
}

// Job returns the job the stage belongs to.
func (p *Pipe) Job() *Job {
	return p.job
}

// Statement returns the source text of the stage.
func (p *Pipe) Statement() string {
	return p.stmt.String()
}

// Stream returns descriptor slot fd, or nil if nothing is bound to it.
func (p *Pipe) Stream(fd int) io.ReadWriter {
	if fd < 0 || fd >= vos.MaxStreams || p.streams[fd] == nil {
		return nil
	}
	return p.streams[fd]
}

func (p *Pipe) run() (res Result) {
	defer p.closeStreams()
	defer func() {
		if r := recover(); r != nil {
			res = p.fail(evalErrorf("panic: %v", r))
		}
	}()

	endOfPipe := p.inherited[1]
	if err := p.redirect(); err != nil {
		return p.fail(err)
	}

	p.frame = &frame{
		session:   p.job.session,
		job:       p.job,
		ctx:       p.job.ctx,
		stdin:     p.streams[0],
		stdout:    p.streams[1],
		stderr:    p.streams[2],
		capturing: p.parent.capturing,
		args:      p.parent.args,
	}

	var (
		value interface{}
		err   error
	)
	if len(p.stmt.Words) == 0 {
		err = p.copyInput()
	} else {
		value, err = p.frame.executeStatement(p.stmt)
	}
	if err != nil {
		return p.fail(err)
	}

	if value != nil && !endOfPipe && p.formatPipe() {
		text := strings.TrimSuffix(p.job.session.Format(value, Inspect), "\n")
		if _, err := fmt.Fprintln(p.streams[1], text); err != nil && !IsInterruption(err) {
			return p.fail(err)
		}
	}
	return Result{Value: value, ExitCode: p.frame.ExitCode()}
}

// copyInput makes a statement made only of redirections, such as
// "< in > out", copy its input to its output.
func (p *Pipe) copyInput() error {
	if p.inherited[0] {
		return nil
	}
	_, err := io.Copy(p.streams[1], p.streams[0])
	return err
}

func (p *Pipe) formatPipe() bool {
	v, _ := p.job.session.Get(VarFormatPipe)
	return v == nil || isTrue(v)
}

// fail turns err into the stage result. Errors not yet reported are
// written to the stage's error stream.
func (p *Pipe) fail(err error) Result {
	switch {
	case errors.Is(err, io.ErrClosedPipe) && p.job.ctx.Err() == nil:
		// the next stage stopped reading
		return Result{}
	case IsInterruption(err):
		if p.job.ctx.Err() != nil {
			err = errInterrupted
		}
		return Result{Err: err, ExitCode: 130}
	}

	if !IsReported(err) {
		fmt.Fprintf(p.streams[2], "%s: %s: %s\n", p.job.session.processor.ShellName(), ErrorKind(err), err)
		err = &reportedError{err: err}
	}
	return Result{Err: err, ExitCode: 1}
}

func (p *Pipe) closeStreams() {
	for fd, mc := range p.streams {
		if mc == nil {
			continue
		}
		if err := mc.Close(); err != nil && !IsInterruption(err) {
			log.Printf("closing descriptor %d of %q: %v", fd, p.Statement(), err)
		}
	}
	for _, mc := range p.replaced {
		if err := mc.Close(); err != nil && !IsInterruption(err) {
			log.Printf("closing replaced descriptor of %q: %v", p.Statement(), err)
		}
	}
}

// interrupt unblocks the pipes the stage set up. Inherited slots belong to
// the enclosing stage.
func (p *Pipe) interrupt(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for fd, mc := range p.streams {
		if mc != nil && !p.inherited[fd] {
			mc.Interrupt(err)
		}
	}
	for _, mc := range p.replaced {
		mc.Interrupt(err)
	}
}

// redirect applies the statement's redirections in order.
func (p *Pipe) redirect() error {
	for _, r := range p.stmt.Redirections {
		op := r.Op.String()

		switch {
		case op == "<<" || op == "<<-":
			body := r.Target.String()
			if op == "<<-" {
				body = stripTabs(body)
			}
			p.setStream(0, io.NopCloser(strings.NewReader(body)), true, false)

		case op == "<<<":
			v, err := expand.Expand(r.Target.Token, p.parent)
			if err != nil {
				return err
			}
			p.setStream(0, io.NopCloser(strings.NewReader(expand.Stringify(v)+"\n")), true, false)

		case aliasRedirect.MatchString(op):
			m := aliasRedirect.FindStringSubmatch(op)
			fd := descriptor(m[1], 1)
			target := descriptor(m[2], 1)
			if p.streams[target] == nil {
				return &fs.PathError{Op: "redirect", Path: "&" + m[2], Err: errors.New("bad file descriptor")}
			}
			alias := p.newChannel()
			alias.AddWriter(p.streams[target], false)
			alias.AddReader(p.streams[target], false)
			p.mu.Lock()
			p.replace(fd, alias)
			p.mu.Unlock()

		case writeRedirect.MatchString(op):
			m := writeRedirect.FindStringSubmatch(op)
			appending := m[3] != ""
			files, err := p.open(r.Target, false, true, appending)
			if err != nil {
				return err
			}
			for _, f := range files {
				if m[2] != "" {
					shared := vos.NewRefCounted(f)
					p.setStream(1, shared.Ref(), false, true)
					p.setStream(2, shared.Ref(), false, true)
					continue
				}
				p.setStream(descriptor(m[1], 1), f, false, true)
			}

		case readRedirect.MatchString(op):
			m := readRedirect.FindStringSubmatch(op)
			readWrite := m[2] != ""
			files, err := p.open(r.Target, true, readWrite, false)
			if err != nil {
				return err
			}
			for _, f := range files {
				p.setStream(descriptor(m[1], 0), f, true, readWrite)
			}

		default:
			return evalErrorf("unsupported redirection %q", op)
		}
	}
	return nil
}

// setStream binds stream to slot fd. An inherited slot is replaced, a slot
// the stage set up itself gains another source or destination.
func (p *Pipe) setStream(fd int, stream io.Closer, read, write bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mc := p.streams[fd]
	if mc == nil || p.inherited[fd] {
		mc = p.newChannel()
		p.replace(fd, mc)
	}
	if r, ok := stream.(io.Reader); ok && read {
		mc.AddReader(r, true)
	}
	if w, ok := stream.(io.Writer); ok && write {
		mc.AddWriter(w, true)
	}
}

func (p *Pipe) open(target *parser.Word, read, write, appending bool) ([]io.ReadWriteCloser, error) {
	v, err := expand.Expand(target.Token, p.parent)
	if err != nil {
		return nil, err
	}
	paths, err := toPaths(v, target.String())
	if err != nil {
		return nil, err
	}

	session := p.job.session
	var files []io.ReadWriteCloser
	for _, name := range paths {
		f, err := session.Fs().OpenFile(vos.Resolve(session.CurrentDir(), name), vos.OpenFlags(read, write, appending), 0o644)
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func toPaths(v interface{}, word string) ([]string, error) {
	var paths []string
	if list, ok := expand.ToList(v); ok {
		for _, item := range list {
			if s := expand.Stringify(item); s != "" {
				paths = append(paths, s)
			}
		}
	} else if s := expand.Stringify(v); s != "" {
		paths = append(paths, s)
	}
	if len(paths) == 0 {
		return nil, &fs.PathError{Op: "redirect", Path: word, Err: os.ErrNotExist}
	}
	return paths, nil
}

func descriptor(digit string, fallback int) int {
	if digit == "" {
		return fallback
	}
	n, _ := strconv.Atoi(digit)
	return n
}

func stripTabs(body string) string {
	lines := strings.SplitAfter(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t")
	}
	return strings.Join(lines, "")
}
