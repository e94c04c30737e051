package vos

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

var (
	// ErrNotReadable is returned when reading a slot that only has writers.
	ErrNotReadable = errors.New("channel is not readable")
	// ErrNotWritable is returned when writing a slot that only has readers.
	ErrNotWritable = errors.New("channel is not writable")
)

// MultiChannel is one descriptor slot of a pipeline stage. A slot may hold
// several streams: writes are copied to every writer in order, reads drain
// the readers one after the other, moving on when one reports io.EOF.
//
// A MultiChannel is used by the single goroutine running its stage; only
// Close may be called concurrently.
type MultiChannel struct {
	readers []io.Reader
	writers []io.Writer
	owned   []io.Closer
	index   int
	closed  atomic.Bool

	// Wait, if set, is called with the stream about to be used before every
	// read or write. A non-nil error aborts the operation.
	Wait func(stream interface{}) error
	// Context, if set, is passed on to readers implementing ContextReader.
	Context context.Context
}

var _ io.ReadWriteCloser = (*MultiChannel)(nil)

// NewMultiChannel creates an empty slot.
func NewMultiChannel() *MultiChannel {
	return &MultiChannel{}
}

// AddReader appends a source, owned sources are closed with the slot.
func (m *MultiChannel) AddReader(r io.Reader, owned bool) {
	m.readers = append(m.readers, r)
	m.own(r, owned)
}

// AddWriter appends a destination, owned destinations are closed with the
// slot.
func (m *MultiChannel) AddWriter(w io.Writer, owned bool) {
	m.writers = append(m.writers, w)
	m.own(w, owned)
}

func (m *MultiChannel) own(stream interface{}, owned bool) {
	if !owned {
		return
	}
	if c, ok := stream.(io.Closer); ok {
		for _, existing := range m.owned {
			if existing == c {
				return
			}
		}
		m.owned = append(m.owned, c)
	}
}

// Readers returns the number of sources in the slot.
func (m *MultiChannel) Readers() int {
	return len(m.readers)
}

// Writers returns the number of destinations in the slot.
func (m *MultiChannel) Writers() int {
	return len(m.writers)
}

// Streams returns every reader and writer in the slot.
func (m *MultiChannel) Streams() []interface{} {
	var out []interface{}
	for _, r := range m.readers {
		out = append(out, r)
	}
	for _, w := range m.writers {
		out = append(out, w)
	}
	return out
}

func (m *MultiChannel) wait(stream interface{}) error {
	if m.Wait == nil {
		return nil
	}
	return m.Wait(stream)
}

func (m *MultiChannel) Read(b []byte) (int, error) {
	ctx := m.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return m.ReadContext(ctx, b)
}

// ReadContext reads like Read, handing ctx to the sources that accept one.
func (m *MultiChannel) ReadContext(ctx context.Context, b []byte) (int, error) {
	if m.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	if len(m.readers) == 0 && len(m.writers) > 0 {
		return 0, ErrNotReadable
	}

	for m.index < len(m.readers) {
		r := m.readers[m.index]
		if err := m.wait(r); err != nil {
			return 0, err
		}
		n, err := readContext(ctx, r, b)
		if err == io.EOF {
			m.index++
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
	return 0, io.EOF
}

func readContext(ctx context.Context, r io.Reader, b []byte) (int, error) {
	if cr, ok := r.(ContextReader); ok {
		return cr.ReadContext(ctx, b)
	}
	return r.Read(b)
}

func (m *MultiChannel) Write(b []byte) (int, error) {
	if m.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	if len(m.writers) == 0 && len(m.readers) > 0 {
		return 0, ErrNotWritable
	}

	for _, w := range m.writers {
		if err := m.wait(w); err != nil {
			return 0, err
		}
		if _, err := w.Write(b); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// Close closes the owned streams once, later calls do nothing.
func (m *MultiChannel) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for _, c := range m.owned {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Interrupt closes every pipe in the slot with err so blocked readers and
// writers on either end return.
func (m *MultiChannel) Interrupt(err error) {
	for _, s := range m.Streams() {
		switch p := s.(type) {
		case *io.PipeReader:
			p.CloseWithError(err)
		case *io.PipeWriter:
			p.CloseWithError(err)
		case *MultiChannel:
			p.Interrupt(err)
		}
	}
}

// RefCounted shares one stream between several owners. The stream is closed
// when the last handle returned by Ref is closed.
type RefCounted struct {
	rw   io.ReadWriteCloser
	mu   sync.Mutex
	refs int
}

// NewRefCounted wraps rw. It starts with no references.
func NewRefCounted(rw io.ReadWriteCloser) *RefCounted {
	return &RefCounted{rw: rw}
}

// Ref returns a new handle to the shared stream.
func (r *RefCounted) Ref() io.ReadWriteCloser {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs++
	return &refHandle{parent: r}
}

func (r *RefCounted) release() error {
	r.mu.Lock()
	r.refs--
	last := r.refs == 0
	r.mu.Unlock()

	if last {
		return r.rw.Close()
	}
	return nil
}

type refHandle struct {
	parent *RefCounted
	closed atomic.Bool
}

func (h *refHandle) Read(b []byte) (int, error) {
	if h.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return h.parent.rw.Read(b)
}

func (h *refHandle) Write(b []byte) (int, error) {
	if h.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return h.parent.rw.Write(b)
}

func (h *refHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.parent.release()
}
