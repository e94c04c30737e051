package ttylog

import "fmt"

// FD identifies the stream an entry was captured from.
type FD int

const (
	FDStdin FD = iota
	FDStdout
	FDStderr
)

func (fd FD) String() string {
	switch fd {
	case FDStdin:
		return "stdin"
	case FDStdout:
		return "stdout"
	case FDStderr:
		return "stderr"
	default:
		return fmt.Sprintf("fd%d", int(fd))
	}
}

// Entry is a single captured terminal event.
type Entry struct {
	// TimestampMicros is the UNIX time of the event in microseconds.
	TimestampMicros int64
	Fd              FD
	Data            []byte
	// Close marks the end of the recording, Fd and Data are unset.
	Close bool
}
