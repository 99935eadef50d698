// Package eventlog implements decapod's append-only, newline-delimited JSON
// event log: the single authoritative record of every state-changing
// operation. Derived SQLite views are disposable; the log is not.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is one line of a domain's `<domain>.events.jsonl` file.
type Event struct {
	TS        time.Time       `json:"ts"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Status    string          `json:"status"` // pending | success | failure
	SubjectID string          `json:"subject_id"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEventID returns a fresh monotonic-sortable ULID string.
func NewEventID() string {
	return ulid.Make().String()
}

// Log appends to and streams a single domain's event file.
type Log struct {
	path string
}

// Open returns a Log bound to path. The file is created on first Append if
// absent; Open itself performs no I/O.
func Open(path string) *Log {
	return &Log{path: path}
}

// Append opens the log O_APPEND, writes ev as one JSON line, and fsyncs
// before returning so a crash immediately after Append never loses the
// write that the caller believes succeeded.
func (l *Log) Append(ev Event) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshal: %w", err)
	}
	b = append(b, '\n')
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("eventlog: write: %w", err)
	}
	return f.Sync()
}

// Stream calls fn for every event in file order, stopping at the first
// error returned by fn or io.EOF.
func (l *Log) Stream(fn func(Event) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("eventlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("eventlog: decode line: %w", err)
		}
		if err := fn(ev); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return sc.Err()
}

// All collects every event into a slice, in file order.
func (l *Log) All() ([]Event, error) {
	var out []Event
	err := l.Stream(func(ev Event) error {
		out = append(out, ev)
		return nil
	})
	return out, err
}
