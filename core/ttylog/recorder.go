package ttylog

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/josephlewis42/pipesh/core/vos"
)

// Recorder is a VIO that copies everything passing through the streams it
// wraps to a LogSink. Recording stops at the first sink error.
type Recorder struct {
	*vos.VIOAdapter

	// Now is the clock used to stamp entries, it defaults to time.Now.
	Now func() time.Time

	mu     sync.Mutex
	output LogSink
	closed bool
	err    error
}

var _ vos.VIO = (*Recorder)(nil)

// NewRecorder creates a logger that forwards all events to output.
func NewRecorder(toWrap vos.VIO, output LogSink) *Recorder {
	r := &Recorder{output: output}

	stdin, stdout, stderr := toWrap.Stdin(), toWrap.Stdout(), toWrap.Stderr()
	r.VIOAdapter = vos.NewVIOAdapter(
		&tap{rec: r, fd: FDStdin, r: stdin, c: stdin},
		&tap{rec: r, fd: FDStdout, w: stdout, c: stdout},
		&tap{rec: r, fd: FDStderr, w: stderr, c: stderr},
	)
	return r
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Recorder) emit(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	if err := r.output(e); err != nil {
		r.err = err
		log.Printf("transcript stopped: %v", err)
	}
}

// capture runs a read or write and records the bytes it moved, stamped
// with the time the call started.
func (r *Recorder) capture(fd FD, p []byte, op func([]byte) (int, error)) (int, error) {
	at := r.now()
	n, err := op(p)
	if n > 0 {
		r.emit(&Entry{
			TimestampMicros: at.UnixMicro(),
			Fd:              fd,
			Data:            append([]byte(nil), p[:n]...),
		})
	}
	return n, err
}

// Err returns the error that stopped the recording, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close ends the recording, the wrapped streams are left open.
func (r *Recorder) Close() error {
	r.emit(&Entry{TimestampMicros: r.now().UnixMicro(), Close: true})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// tap is one recorded stream, r is set for input and w for output.
type tap struct {
	rec *Recorder
	fd  FD
	r   io.Reader
	w   io.Writer
	c   io.Closer
}

func (t *tap) Read(p []byte) (int, error) {
	return t.rec.capture(t.fd, p, t.r.Read)
}

func (t *tap) Write(p []byte) (int, error) {
	return t.rec.capture(t.fd, p, t.w.Write)
}

func (t *tap) Close() error {
	return t.c.Close()
}
