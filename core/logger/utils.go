package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Event types.
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
	TypeExecute      = "execute"
	TypeJobStatus    = "job_status"
)

// LogEntry is a single event.
type LogEntry struct {
	Timestamp time.Time
	SessionID string
	Type      string
	Fields    *structpb.Struct
}

// Text returns a string field of the entry, or the empty string.
func (le *LogEntry) Text(name string) string {
	return le.Fields.GetFields()[name].GetStringValue()
}

// Number returns a numeric field of the entry, or 0.
func (le *LogEntry) Number(name string) float64 {
	return le.Fields.GetFields()[name].GetNumberValue()
}

// MarshalJSON encodes the entry as a single JSON object.
func (le *LogEntry) MarshalJSON() ([]byte, error) {
	ts, err := protojson.Marshal(timestamppb.New(le.Timestamp))
	if err != nil {
		return nil, err
	}

	fields := le.Fields
	if fields == nil {
		fields = &structpb.Struct{}
	}

	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"timestamp": structpb.NewStringValue(trimQuotes(ts)),
		"type":      structpb.NewStringValue(le.Type),
		"fields":    structpb.NewStructValue(fields),
	}}
	if le.SessionID != "" {
		out.Fields["session_id"] = structpb.NewStringValue(le.SessionID)
	}
	return protojson.Marshal(out)
}

// UnmarshalJSON decodes an entry written by MarshalJSON.
func (le *LogEntry) UnmarshalJSON(data []byte) error {
	var raw structpb.Struct
	if err := protojson.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := raw.GetFields()

	var ts timestamppb.Timestamp
	if err := protojson.Unmarshal([]byte(fmt.Sprintf("%q", fields["timestamp"].GetStringValue())), &ts); err != nil {
		return fmt.Errorf("bad timestamp: %w", err)
	}

	le.Timestamp = ts.AsTime()
	le.SessionID = fields["session_id"].GetStringValue()
	le.Type = fields["type"].GetStringValue()
	le.Fields = fields["fields"].GetStructValue()
	if le.Fields == nil {
		le.Fields = &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}
	return nil
}

func trimQuotes(b []byte) string {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures execution events of the shell.
type Logger struct {
	Record LogRecorder

	// Now is the clock used to stamp entries, it defaults to time.Now.
	Now func() time.Time
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := le.MarshalJSON()
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

func (l *Logger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Logger) recordFields(sessionID, eventType string, fields map[string]interface{}) error {
	payload, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}

	return l.Record(&LogEntry{
		Timestamp: l.now(),
		SessionID: sessionID,
		Type:      eventType,
		Fields:    payload,
	})
}

// NewSession creates a logger with attached session ID, a random one is
// generated if sessionID is empty.
func (l *Logger) NewSession(sessionID string) *SessionLogger {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &SessionLogger{Logger: l, sessionID: sessionID}
}

// Sessionless creates a logger for events outside of a session.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: ""}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID is the ID attached to every entry.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

// Record logs an event of the given type.
func (l *SessionLogger) Record(eventType string, fields map[string]interface{}) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return l.recordFields(l.sessionID, eventType, fields)
}

// SessionStart logs the creation of a session.
func (l *SessionLogger) SessionStart(dir string) error {
	return l.Record(TypeSessionStart, map[string]interface{}{"dir": dir})
}

// SessionEnd logs the end of a session and its final exit code.
func (l *SessionLogger) SessionEnd(exitCode int) error {
	return l.Record(TypeSessionEnd, map[string]interface{}{"exit_code": exitCode})
}

// Execute logs a line run by a session. Kind is the diagnostic kind of err.
func (l *SessionLogger) Execute(line string, duration time.Duration, exitCode int, err error, kind string) error {
	fields := map[string]interface{}{
		"line":            line,
		"duration_micros": duration.Microseconds(),
		"exit_code":       exitCode,
	}
	if err != nil {
		fields["error"] = err.Error()
		fields["error_kind"] = kind
	}
	return l.Record(TypeExecute, fields)
}

// JobStatus logs a job transition.
func (l *SessionLogger) JobStatus(id int, command, previous, current string) error {
	return l.Record(TypeJobStatus, map[string]interface{}{
		"job_id":   id,
		"command":  command,
		"previous": previous,
		"current":  current,
	})
}
