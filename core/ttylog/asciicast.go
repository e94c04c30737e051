package ttylog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

// AsciicastFileExt holds the suggested file extension for asciicast files.
const AsciicastFileExt = "cast"

const asciicastVersion = 2

// AsciicastHeader is the first line of an asciicast v2 recording.
//
// See: https://github.com/asciinema/asciinema/blob/develop/doc/asciicast-v2.md
type AsciicastHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// DefaultAsciicastHeader gives generic settings that display most outputs.
func DefaultAsciicastHeader(title string) AsciicastHeader {
	return AsciicastHeader{
		Version: asciicastVersion,
		Width:   80,
		Height:  24,
		Title:   title,
		Env: map[string]string{
			"TERM":  "xterm-256color",
			"SHELL": "pipesh",
		},
	}
}

// Event codes, asciicast has no stderr so it's folded into output.
const (
	castOutput = "o"
	castInput  = "i"
)

// NewAsciicastLogSink creates a LogSink that writes asciicast v2. The header
// is written with the first entry and event times are relative to it.
func NewAsciicastLogSink(w io.Writer, header AsciicastHeader) LogSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	started := false
	var startMicros int64

	return func(entry *Entry) error {
		if !started {
			started = true
			startMicros = entry.TimestampMicros
			header.Version = asciicastVersion
			header.Timestamp = time.UnixMicro(startMicros).Unix()
			if err := enc.Encode(header); err != nil {
				return err
			}
		}

		if entry.Close {
			return nil
		}

		code := castOutput
		if entry.Fd == FDStdin {
			code = castInput
		}
		return enc.Encode([]interface{}{
			castSeconds(entry.TimestampMicros - startMicros),
			code,
			string(entry.Data),
		})
	}
}

// AsciicastLogSource reads entries from an asciicast v2 recording.
type AsciicastLogSource struct {
	r      *bufio.Reader
	header *AsciicastHeader
}

var _ LogSource = (*AsciicastLogSource)(nil)

// NewAsciicastLogSource reads log events from an Asciicast formatted file.
func NewAsciicastLogSource(r io.Reader) *AsciicastLogSource {
	return &AsciicastLogSource{r: bufio.NewReader(r)}
}

// Header reads and returns the recording's header.
func (src *AsciicastLogSource) Header() (*AsciicastHeader, error) {
	if src.header != nil {
		return src.header, nil
	}

	line, err := src.r.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return nil, err
	}

	header := &AsciicastHeader{}
	if err := json.Unmarshal(line, header); err != nil {
		return nil, fmt.Errorf("malformed header: %w", err)
	}
	if header.Version != asciicastVersion {
		return nil, fmt.Errorf("unsupported asciicast version %d", header.Version)
	}
	src.header = header
	return header, nil
}

// Next gets the next log entry, it returns io.EOF if there are no more.
// Event types other than input and output are skipped.
func (src *AsciicastLogSource) Next() (*Entry, error) {
	if _, err := src.Header(); err != nil {
		return nil, err
	}

	for {
		line, err := src.r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}

		seconds, code, data, parseErr := parseCastEvent(line)
		if parseErr != nil {
			return nil, parseErr
		}

		entry := &Entry{TimestampMicros: castMicros(seconds), Data: []byte(data)}
		switch code {
		case castOutput:
			entry.Fd = FDStdout
		case castInput:
			entry.Fd = FDStdin
		default:
			continue
		}
		return entry, nil
	}
}

// parseCastEvent splits an event line of the form [time, code, data].
func parseCastEvent(line []byte) (seconds float64, code, data string, err error) {
	var fields []json.RawMessage
	if err = json.Unmarshal(line, &fields); err != nil {
		return
	}
	if len(fields) != 3 {
		err = fmt.Errorf("malformed line, expected 3 entries got %d", len(fields))
		return
	}

	for i, dst := range []interface{}{&seconds, &code, &data} {
		if err = json.Unmarshal(fields[i], dst); err != nil {
			err = fmt.Errorf("malformed data in line %q: %w", line, err)
			return
		}
	}
	return
}

// castSeconds converts a microsecond offset to asciicast's fractional
// seconds.
func castSeconds(micros int64) float64 {
	return (time.Duration(micros) * time.Microsecond).Seconds()
}

// castMicros is the inverse of castSeconds.
func castMicros(seconds float64) int64 {
	return int64(math.Round(seconds * 1e6))
}
