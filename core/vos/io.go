package vos

import (
	"context"
	"io"
)

// VIOAdapter is a VIO over fixed streams.
type VIOAdapter struct {
	IStdin  io.ReadCloser
	IStdout io.WriteCloser
	IStderr io.WriteCloser
}

var _ VIO = (*VIOAdapter)(nil)

// NewVIOAdapter wraps plain streams. Closing a stream that has no Close of
// its own does nothing, and nil streams behave like /dev/null.
func NewVIOAdapter(stdin io.Reader, stdout, stderr io.Writer) *VIOAdapter {
	return &VIOAdapter{
		IStdin:  readCloser(stdin),
		IStdout: writeCloser(stdout),
		IStderr: writeCloser(stderr),
	}
}

func (a *VIOAdapter) Stdin() io.ReadCloser   { return a.IStdin }
func (a *VIOAdapter) Stdout() io.WriteCloser { return a.IStdout }
func (a *VIOAdapter) Stderr() io.WriteCloser { return a.IStderr }

func readCloser(r io.Reader) io.ReadCloser {
	switch v := r.(type) {
	case nil:
		return devNull{}
	case io.ReadCloser:
		return v
	default:
		return io.NopCloser(r)
	}
}

func writeCloser(w io.Writer) io.WriteCloser {
	switch v := w.(type) {
	case nil:
		return devNull{}
	case io.WriteCloser:
		return v
	default:
		return nopCloser{w}
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// devNull reads as empty and discards writes.
type devNull struct{}

func (devNull) Read([]byte) (int, error)    { return 0, io.EOF }
func (devNull) Write(b []byte) (int, error) { return len(b), nil }
func (devNull) Close() error                { return nil }

// Terminal wraps the streams a session was created with. Stages compare
// against it to find out when a background job touches the terminal.
type Terminal struct {
	In  *TerminalReader
	Out *TerminalWriter
	Err *TerminalWriter
}

// NewTerminal wraps the given streams, nil streams behave like /dev/null.
// When stdout and stderr are the same writer both share one wrapper.
func NewTerminal(stdin io.Reader, stdout, stderr io.Writer) *Terminal {
	adapter := NewVIOAdapter(stdin, stdout, stderr)
	t := &Terminal{
		In:  newTerminalReader(adapter.Stdin()),
		Out: &TerminalWriter{adapter.Stdout()},
	}
	if stderr != nil && sameWriter(stdout, stderr) {
		t.Err = t.Out
	} else {
		t.Err = &TerminalWriter{adapter.Stderr()}
	}
	return t
}

var _ VIO = (*Terminal)(nil)

func (t *Terminal) Stdin() io.ReadCloser {
	return t.In
}

func (t *Terminal) Stdout() io.WriteCloser {
	return t.Out
}

func (t *Terminal) Stderr() io.WriteCloser {
	return t.Err
}

// ContextReader is a reader whose blocking reads can be abandoned.
type ContextReader interface {
	ReadContext(ctx context.Context, b []byte) (int, error)
}

// TerminalReader is the input side of a Terminal. Closing it is a no-op.
//
// Reads run on a helper goroutine so ReadContext can give up on one. Input
// arriving after a read was abandoned goes to the next reader.
type TerminalReader struct {
	r     io.Reader
	turn  chan struct{}
	ready chan readResult

	// guarded by turn
	pending bool
	buf     []byte
	err     error
}

type readResult struct {
	data []byte
	err  error
}

var _ ContextReader = (*TerminalReader)(nil)

func newTerminalReader(r io.Reader) *TerminalReader {
	return &TerminalReader{
		r:     r,
		turn:  make(chan struct{}, 1),
		ready: make(chan readResult, 1),
	}
}

func (t *TerminalReader) Read(b []byte) (int, error) {
	return t.ReadContext(context.Background(), b)
}

// ReadContext reads like Read but returns ctx.Err() once ctx is done.
func (t *TerminalReader) ReadContext(ctx context.Context, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	select {
	case t.turn <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-t.turn }()

	if len(t.buf) == 0 && t.err == nil {
		if !t.pending {
			t.pending = true
			go t.fill(len(b))
		}
		select {
		case res := <-t.ready:
			t.pending = false
			t.buf, t.err = res.data, res.err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	n := copy(b, t.buf)
	t.buf = t.buf[n:]
	if len(t.buf) == 0 && t.err != nil {
		err := t.err
		t.err = nil
		return n, err
	}
	return n, nil
}

func (t *TerminalReader) fill(size int) {
	data := make([]byte, size)
	n, err := t.r.Read(data)
	t.ready <- readResult{data: data[:n], err: err}
}

func (*TerminalReader) Close() error {
	return nil
}

// TerminalWriter is an output side of a Terminal. Closing it is a no-op.
type TerminalWriter struct {
	w io.Writer
}

func (t *TerminalWriter) Write(b []byte) (int, error) {
	return t.w.Write(b)
}

func (*TerminalWriter) Close() error {
	return nil
}

// IsTerminal reports whether stream is one of the wrappers of a Terminal.
func IsTerminal(stream interface{}) bool {
	switch stream.(type) {
	case *TerminalReader, *TerminalWriter:
		return true
	default:
		return false
	}
}

func sameWriter(a, b io.Writer) (same bool) {
	defer func() {
		// Uncomparable dynamic types panic, they can't be the same writer.
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
