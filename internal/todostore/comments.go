package todostore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// Comment is one note attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// EnsureCommentSchema creates the task_comments table if absent.
func EnsureCommentSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS task_comments (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		author TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("todostore: ensure comment schema: %w", err)
	}
	return nil
}

// AddComment appends a task.comment event and inserts the comment row,
// bracketed by the domain broker.
func (s *Store) AddComment(ctx context.Context, db *sql.DB, actor, taskID, body string) (Comment, error) {
	c := Comment{ID: "C_" + ulid.Make().String(), TaskID: taskID, Author: actor, Body: body, CreatedAt: time.Now().UTC()}
	err := s.Broker.WithConn(ctx, db, actor, taskID, "task.comment", func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO task_comments (id, task_id, author, body, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.TaskID, c.Author, c.Body, c.CreatedAt.Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// ListComments returns every comment attached to a task, oldest first.
func ListComments(ctx context.Context, db *sql.DB, taskID string) ([]Comment, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, task_id, author, body, created_at FROM task_comments WHERE task_id=? ORDER BY created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("todostore: list comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Author, &c.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("todostore: scan comment: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// EditFields carries the task.edit op's optional field updates; a nil
// pointer leaves the corresponding column untouched.
type EditFields struct {
	Title    *string
	Priority *string
	Tags     *[]string
}

// EditTask applies a partial update to a task's mutable fields, bracketed
// by the domain broker as task.edit.
func (s *Store) EditTask(ctx context.Context, db *sql.DB, actor, taskID string, fields EditFields) error {
	return s.Broker.WithConn(ctx, db, actor, taskID, "task.edit", func(tx *sql.Tx) error {
		if fields.Title != nil {
			if _, err := tx.Exec(`UPDATE tasks SET title=? WHERE id=?`, *fields.Title, taskID); err != nil {
				return err
			}
		}
		if fields.Priority != nil {
			if _, err := tx.Exec(`UPDATE tasks SET priority=? WHERE id=?`, *fields.Priority, taskID); err != nil {
				return err
			}
		}
		if fields.Tags != nil {
			if _, err := tx.Exec(`UPDATE tasks SET tags=? WHERE id=?`, joinCSV(*fields.Tags), taskID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Categories returns the distinct, sorted set of tags used across every
// task, decapod's stand-in for the spec's undetailed "todo categories" op.
func Categories(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT tags FROM tasks WHERE tags != ''`)
	if err != nil {
		return nil, fmt.Errorf("todostore: categories: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, fmt.Errorf("todostore: scan categories: %w", err)
		}
		for _, tag := range splitCSV(tags) {
			seen[tag] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}
