package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxLogLine bounds a single event, long pipelines produce long lines.
const maxLogLine = 1 << 20

// ReadJSONLinesLog parses a newline delimited JSON log. Blank lines are
// skipped.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry LogEntry
		if err := entry.UnmarshalJSON(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		handler(&entry)
	}
	return scanner.Err()
}

// commandName is the first word of an executed line.
func commandName(line string) string {
	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// Tally counts rows of values. A tally with at most one column encodes as
// an object of value to count, wider ones as a list of rows, most frequent
// first. The zero value is a one column tally.
type Tally struct {
	columns []string
	counts  map[string]int
}

// NewTally creates a tally whose rows have the named columns.
func NewTally(columns ...string) *Tally {
	return &Tally{columns: columns}
}

const tallySep = "\x1f"

// Add counts one occurrence of the row.
func (t *Tally) Add(row ...string) {
	if len(t.columns) > 1 && len(row) != len(t.columns) {
		panic(fmt.Sprintf("tally: got %d values for %d columns", len(row), len(t.columns)))
	}
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	t.counts[strings.Join(row, tallySep)]++
}

// Count returns how many times the row was added.
func (t *Tally) Count(row ...string) int {
	return t.counts[strings.Join(row, tallySep)]
}

// TallyRow is one distinct row and the number of times it was seen.
type TallyRow struct {
	Count  int               `json:"count"`
	Fields map[string]string `json:"event"`

	key string
}

// Rows lists the distinct rows, most frequent first, ties by value.
func (t *Tally) Rows() []TallyRow {
	rows := make([]TallyRow, 0, len(t.counts))
	for key, count := range t.counts {
		row := TallyRow{Count: count, Fields: make(map[string]string), key: key}
		values := strings.Split(key, tallySep)
		for i, col := range t.columns {
			if i < len(values) {
				row.Fields[col] = values[i]
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].key < rows[j].key
	})
	return rows
}

// MarshalJSON implements json.Marshaler.
func (t Tally) MarshalJSON() ([]byte, error) {
	if len(t.columns) > 1 {
		return json.Marshal(t.Rows())
	}
	if t.counts == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.counts)
}

// FailureReport groups the lines that ended in an error.
type FailureReport struct {
	LogEntries int    `json:"log_entries"`
	Failures   *Tally `json:"failures"`
}

func NewFailureReport() *FailureReport {
	return &FailureReport{Failures: NewTally("command", "kind", "error")}
}

func (r *FailureReport) Update(le *LogEntry) {
	r.LogEntries++
	if le.Type == TypeExecute && le.Text("error") != "" {
		r.Failures.Add(commandName(le.Text("line")), le.Text("error_kind"), le.Text("error"))
	}
}

// SessionSummary is what a single session did.
type SessionSummary struct {
	Dir        string    `json:"dir"`
	Started    time.Time `json:"started"`
	LastSeen   time.Time `json:"last_seen"`
	LogEntries int       `json:"log_entries"`
	Failures   int       `json:"failures"`
	ExitCode   int       `json:"exit_code"`
	Closed     bool      `json:"closed"`
	Commands   []string  `json:"commands"`
	Jobs       []string  `json:"jobs"`
}

func (s *SessionSummary) update(le *LogEntry) {
	s.LogEntries++
	if s.Started.IsZero() || le.Timestamp.Before(s.Started) {
		s.Started = le.Timestamp
	}
	if le.Timestamp.After(s.LastSeen) {
		s.LastSeen = le.Timestamp
	}

	switch le.Type {
	case TypeSessionStart:
		s.Dir = le.Text("dir")
	case TypeSessionEnd:
		s.Closed = true
		s.ExitCode = int(le.Number("exit_code"))
	case TypeExecute:
		s.Commands = append(s.Commands, le.Text("line"))
		s.ExitCode = int(le.Number("exit_code"))
		if le.Text("error") != "" {
			s.Failures++
		}
	case TypeJobStatus:
		if le.Text("previous") == "Created" {
			s.Jobs = append(s.Jobs, le.Text("command"))
		}
	}
}

// InteractionReport summarizes every session in the log. Entries without
// a session are ignored.
type InteractionReport struct {
	sessions map[string]*SessionSummary
}

func (r *InteractionReport) Update(le *LogEntry) {
	if le.SessionID == "" {
		return
	}
	if r.sessions == nil {
		r.sessions = make(map[string]*SessionSummary)
	}

	summary, ok := r.sessions[le.SessionID]
	if !ok {
		summary = &SessionSummary{}
		r.sessions[le.SessionID] = summary
	}
	summary.update(le)
}

// Session returns the summary of a single session, or nil.
func (r *InteractionReport) Session(sessionID string) *SessionSummary {
	return r.sessions[sessionID]
}

// MarshalJSON implements json.Marshaler.
func (r *InteractionReport) MarshalJSON() ([]byte, error) {
	if r.sessions == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.sessions)
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int   `json:"log_entries"`
	InvalidEntries Tally `json:"unknown_log_entries"`

	Sessions SessionReport `json:"session_report"`
	Execute  ExecuteReport `json:"execute_report"`
	Jobs     JobReport     `json:"job_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch le.Type {
	case TypeSessionStart:
		r.Sessions.Started++
	case TypeSessionEnd:
		r.Sessions.Ended++
	case TypeExecute:
		r.Execute.update(le)
	case TypeJobStatus:
		r.Jobs.Transitions.Add(le.Text("previous") + "->" + le.Text("current"))
	default:
		r.InvalidEntries.Add(le.Type)
	}
}

type SessionReport struct {
	Started int `json:"started"`
	Ended   int `json:"ended"`
}

type ExecuteReport struct {
	Count int `json:"count"`
	// Total time spent executing lines.
	DurationMicros int64 `json:"duration_micros"`
	// First word of each line.
	CommandNames Tally `json:"command_names"`
	ExitCodes    Tally `json:"exit_codes"`
	ErrorKinds   Tally `json:"error_kinds"`
}

func (r *ExecuteReport) update(le *LogEntry) {
	r.Count++
	r.DurationMicros += int64(le.Number("duration_micros"))
	r.ExitCodes.Add(strconv.Itoa(int(le.Number("exit_code"))))
	if name := commandName(le.Text("line")); name != "" {
		r.CommandNames.Add(name)
	}
	if kind := le.Text("error_kind"); kind != "" {
		r.ErrorKinds.Add(kind)
	}
}

type JobReport struct {
	// Transitions in the form "Previous->Current".
	Transitions Tally `json:"transitions"`
}
