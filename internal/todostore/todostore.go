// Package todostore implements the Task entity: decapod's work-item
// tracker. Field and operation naming follows original_source's
// TodoCommand contract (Add/get_task/update_status/list_tasks/
// rebuild_from_events); owner/priority/label/dependency shape is enriched
// from the BeadsLog RPC protocol where original_source is silent.
package todostore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"decapod/internal/broker"
	"decapod/internal/canon"
	"decapod/internal/decerr"
	"decapod/internal/eventlog"
)

// Status is a Task's lifecycle state.
type Status string

const (
	StatusOpen     Status = "open"
	StatusClaimed  Status = "claimed"
	StatusDone     Status = "done"
	StatusArchived Status = "archived"
)

// Task is a unit of tracked work.
type Task struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Status             Status    `json:"status"`
	Owner              string    `json:"owner,omitempty"`
	Priority            string    `json:"priority,omitempty"`
	Tags               []string  `json:"tags,omitempty" canon:"set"`
	DependsOn          []string  `json:"depends_on,omitempty" canon:"set"`
	Blocks             []string  `json:"blocks,omitempty" canon:"set"`
	Parent             string    `json:"parent,omitempty"`
	DueAt              *time.Time `json:"due_at,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	LastVerifiedStatus string    `json:"last_verified_status,omitempty"`
	LastVerifiedNotes  string    `json:"last_verified_notes,omitempty"`
}

// Store wraps a domain broker + pool connection for the todo domain.
type Store struct {
	Broker *broker.Broker
}

// NewID returns a new task identifier, "T_" followed by a ULID suffix.
func NewID() string {
	return "T_" + ulid.Make().String()
}

// EnsureSchema creates the tasks table if absent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		owner TEXT,
		priority TEXT,
		tags TEXT,
		depends_on TEXT,
		blocks TEXT,
		parent TEXT,
		due_at TEXT,
		created_at TEXT NOT NULL,
		last_verified_status TEXT,
		last_verified_notes TEXT
	)`)
	if err != nil {
		return fmt.Errorf("todostore: ensure schema: %w", err)
	}
	return nil
}

// AddTask appends a task.add event and inserts the derived row, bracketed
// by the domain broker.
func (s *Store) AddTask(ctx context.Context, db *sql.DB, actor string, t Task) (Task, error) {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	t.CreatedAt = time.Now().UTC()

	payload, err := canon.Bytes(t)
	if err != nil {
		return Task{}, err
	}

	err = s.Broker.WithConn(ctx, db, actor, t.ID, "task.add", func(tx *sql.Tx) error {
		return insertTask(tx, t)
	})
	if err != nil {
		return Task{}, err
	}
	_ = payload
	return t, nil
}

func insertTask(tx *sql.Tx, t Task) error {
	_, err := tx.Exec(`INSERT INTO tasks (id, title, status, owner, priority, tags, depends_on, blocks, parent, due_at, created_at, last_verified_status, last_verified_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, string(t.Status), t.Owner, t.Priority,
		joinCSV(t.Tags), joinCSV(t.DependsOn), joinCSV(t.Blocks), t.Parent,
		formatTimePtr(t.DueAt), t.CreatedAt.Format(time.RFC3339Nano),
		t.LastVerifiedStatus, t.LastVerifiedNotes)
	return err
}

// GetTask fetches a task by ID.
func GetTask(ctx context.Context, db *sql.DB, id string) (Task, error) {
	row := db.QueryRowContext(ctx, `SELECT id, title, status, owner, priority, tags, depends_on, blocks, parent, due_at, created_at, last_verified_status, last_verified_notes FROM tasks WHERE id=?`, id)
	return scanTask(row)
}

func scanTask(row *sql.Row) (Task, error) {
	var t Task
	var statusStr, tags, dependsOn, blocks, due, createdAt string
	err := row.Scan(&t.ID, &t.Title, &statusStr, &t.Owner, &t.Priority, &tags, &dependsOn, &blocks, &t.Parent, &due, &createdAt, &t.LastVerifiedStatus, &t.LastVerifiedNotes)
	if err != nil {
		if err == sql.ErrNoRows {
			return Task{}, decerr.New(decerr.KindNotFound, "task not found")
		}
		return Task{}, fmt.Errorf("todostore: scan task: %w", err)
	}
	t.Status = Status(statusStr)
	t.Tags = splitCSV(tags)
	t.DependsOn = splitCSV(dependsOn)
	t.Blocks = splitCSV(blocks)
	if due != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, due); err == nil {
			t.DueAt = &parsed
		}
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return t, nil
}

// ListTasks returns tasks optionally filtered by status; empty status lists
// all tasks.
func ListTasks(ctx context.Context, db *sql.DB, status Status) ([]Task, error) {
	query := `SELECT id, title, status, owner, priority, tags, depends_on, blocks, parent, due_at, created_at, last_verified_status, last_verified_notes FROM tasks`
	args := []any{}
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("todostore: list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var statusStr, tags, dependsOn, blocks, due, createdAt string
		if err := rows.Scan(&t.ID, &t.Title, &statusStr, &t.Owner, &t.Priority, &tags, &dependsOn, &blocks, &t.Parent, &due, &createdAt, &t.LastVerifiedStatus, &t.LastVerifiedNotes); err != nil {
			return nil, fmt.Errorf("todostore: scan task row: %w", err)
		}
		t.Status = Status(statusStr)
		t.Tags = splitCSV(tags)
		t.DependsOn = splitCSV(dependsOn)
		t.Blocks = splitCSV(blocks)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// OwnsOpenOrClaimedTask reports whether actor owns at least one task whose
// status is open or claimed — spec.md §4.8 item 4's mandatory-TODO gate
// precondition.
func OwnsOpenOrClaimedTask(ctx context.Context, db *sql.DB, actor string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE owner=? AND status IN (?, ?)`,
		actor, string(StatusOpen), string(StatusClaimed)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("todostore: owns open or claimed task: %w", err)
	}
	return n > 0, nil
}

// UpdateStatus transitions a task's status, bracketed by the domain broker.
func (s *Store) UpdateStatus(ctx context.Context, db *sql.DB, actor, id string, newStatus Status) error {
	return s.Broker.WithConn(ctx, db, actor, id, "task.status", func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE tasks SET status=? WHERE id=?`, string(newStatus), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return decerr.New(decerr.KindNotFound, "task %s not found", id)
		}
		return nil
	})
}

// Claim sets a task's owner and status to claimed.
func (s *Store) Claim(ctx context.Context, db *sql.DB, actor, id, owner string) error {
	return s.Broker.WithConn(ctx, db, actor, id, "task.claim", func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE tasks SET status=?, owner=? WHERE id=?`, string(StatusClaimed), owner, id)
		return err
	})
}

// Release clears a task's owner and returns it to open.
func (s *Store) Release(ctx context.Context, db *sql.DB, actor, id string) error {
	return s.Broker.WithConn(ctx, db, actor, id, "task.release", func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE tasks SET status=?, owner='' WHERE id=?`, string(StatusOpen), id)
		return err
	})
}

// RecordProofClaimed applies task.proof.claimed annotation-only per spec.md
// §9 Open Question 1: it never mutates status.
func (s *Store) RecordProofClaimed(ctx context.Context, db *sql.DB, actor, id, verifiedStatus, notes string) error {
	return s.Broker.WithConn(ctx, db, actor, id, "task.proof.claimed", func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE tasks SET last_verified_status=?, last_verified_notes=? WHERE id=?`, verifiedStatus, notes, id)
		return err
	})
}

// RebuildFromEvents truncates and replays the tasks table from the event
// log, matching original_source's rebuild_db_from_events contract:
// task.proof.claimed only ever touches last_verified_* fields.
func RebuildFromEvents(ctx context.Context, db *sql.DB, eventsPath string) (int, error) {
	return eventlog.Rebuild(ctx, db, eventsPath,
		func(tx *sql.Tx) error {
			_, err := tx.Exec(`DELETE FROM tasks`)
			return err
		},
		func(tx *sql.Tx, ev eventlog.Event) error {
			if ev.Status != "success" {
				return nil
			}
			switch ev.EventType {
			case "task.add":
				var t Task
				if len(ev.Payload) > 0 {
					_ = decodePayload(ev.Payload, &t)
				}
				if t.ID == "" {
					t.ID = ev.SubjectID
				}
				if t.Status == "" {
					t.Status = StatusOpen
				}
				return insertTask(tx, t)
			case "task.status":
				var body struct{ Status string }
				_ = decodePayload(ev.Payload, &body)
				if body.Status == "" {
					return nil
				}
				_, err := tx.Exec(`UPDATE tasks SET status=? WHERE id=?`, body.Status, ev.SubjectID)
				return err
			case "task.claim":
				_, err := tx.Exec(`UPDATE tasks SET status=? WHERE id=?`, string(StatusClaimed), ev.SubjectID)
				return err
			case "task.release":
				_, err := tx.Exec(`UPDATE tasks SET status=?, owner='' WHERE id=?`, string(StatusOpen), ev.SubjectID)
				return err
			case "task.proof.claimed":
				var body struct{ VerifiedStatus, Notes string }
				_ = decodePayload(ev.Payload, &body)
				_, err := tx.Exec(`UPDATE tasks SET last_verified_status=?, last_verified_notes=? WHERE id=?`, body.VerifiedStatus, body.Notes, ev.SubjectID)
				return err
			}
			return nil
		})
}

func joinCSV(items []string) string   { return strings.Join(items, ",") }
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
