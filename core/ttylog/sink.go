package ttylog

import (
	"bytes"
	"io"
	"time"
)

// LogSink receives log events.
type LogSink func(e *Entry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It returns io.EOF if the source
	// has no more log entries.
	Next() (*Entry, error)
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) error {
	for {
		e, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(e); err != nil {
			return err
		}
	}
}

// Playback paces entries by the time between them.
type Playback struct {
	// MaxIdle caps a single pause, 0 means no cap.
	MaxIdle time.Duration
	// Speed divides every pause, values <= 0 mean 1.
	Speed float64
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Sink wraps next so each entry is delivered after the recorded gap since
// the previous one.
func (p Playback) Sink(next LogSink) LogSink {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	speed := p.Speed
	if speed <= 0 {
		speed = 1
	}

	var last int64
	started := false
	return func(e *Entry) error {
		if started {
			pause := time.Duration(float64(time.Duration(e.TimestampMicros-last)*time.Microsecond) / speed)
			if p.MaxIdle > 0 && pause > p.MaxIdle {
				pause = p.MaxIdle
			}
			if pause > 0 {
				sleep(pause)
			}
		}
		started = true
		last = e.TimestampMicros
		return next(e)
	}
}

// NewCRLFAdapter rewrites bare newlines as \r\n so output recorded from a
// cooked terminal plays back correctly on a raw one.
func NewCRLFAdapter(next LogSink) LogSink {
	return func(e *Entry) error {
		if !e.Close {
			data := bytes.ReplaceAll(e.Data, []byte("\r\n"), []byte("\n"))
			e.Data = bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
		}
		return next(e)
	}
}

// NewClientOutput writes stdout and stderr to the given writer.
func NewClientOutput(w io.Writer) LogSink {
	return func(e *Entry) error {
		if e.Close || e.Fd == FDStdin {
			return nil
		}
		_, err := w.Write(e.Data)
		return err
	}
}
