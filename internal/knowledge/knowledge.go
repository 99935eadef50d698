// Package knowledge implements decapod's knowledge-atom surface: the
// add/promote half of the RPC op enumeration's `knowledge.add|promote`,
// narrowed from the teacher's internal/store/local_knowledge.go
// KnowledgeAtom table to a confidence-scored candidate/promoted lifecycle
// with no embedding column — decapod has no vector-memory surface.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"decapod/internal/canon"
	"decapod/internal/decerr"
)

// Status is an Atom's promotion state.
type Status string

const (
	StatusCandidate Status = "candidate"
	StatusPromoted  Status = "promoted"
)

// Atom is one piece of knowledge an agent has surfaced.
type Atom struct {
	ID         string   `json:"id"`
	Concept    string   `json:"concept"`
	Content    string   `json:"content"`
	Source     string   `json:"source,omitempty"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty" canon:"set"`
	Status     Status   `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnsureSchema creates the knowledge_atoms table if absent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS knowledge_atoms (
		id TEXT PRIMARY KEY,
		concept TEXT NOT NULL,
		content TEXT NOT NULL,
		source TEXT,
		confidence REAL NOT NULL DEFAULT 1.0,
		tags TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("knowledge: ensure schema: %w", err)
	}
	return nil
}

// contentHash derives a stable ID for a (concept, content) pair, so adding
// the same atom twice is a no-op rather than a duplicate row.
func contentHash(concept, content string) (string, error) {
	return canon.HashHex(struct {
		Concept string `json:"concept"`
		Content string `json:"content"`
	}{concept, content})
}

// Add inserts a new candidate atom, deduplicated by content hash.
func Add(ctx context.Context, db *sql.DB, concept, content, source string, confidence float64, tags []string) (Atom, error) {
	id, err := contentHash(concept, content)
	if err != nil {
		return Atom{}, err
	}
	a := Atom{
		ID: id, Concept: concept, Content: content, Source: source,
		Confidence: confidence, Tags: tags, Status: StatusCandidate, CreatedAt: time.Now().UTC(),
	}
	_, err = db.ExecContext(ctx, `INSERT INTO knowledge_atoms (id, concept, content, source, confidence, tags, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		a.ID, a.Concept, a.Content, a.Source, a.Confidence, strings.Join(a.Tags, ","), string(a.Status), a.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Atom{}, fmt.Errorf("knowledge: add: %w", err)
	}
	return a, nil
}

// Promote marks a candidate atom promoted; promoting an already-promoted
// atom is a no-op.
func Promote(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `UPDATE knowledge_atoms SET status=? WHERE id=?`, string(StatusPromoted), id)
	if err != nil {
		return fmt.Errorf("knowledge: promote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return decerr.New(decerr.KindNotFound, "knowledge atom %s not found", id)
	}
	return nil
}

// Get fetches an atom by ID.
func Get(ctx context.Context, db *sql.DB, id string) (Atom, error) {
	var a Atom
	var tags, status, createdAt string
	err := db.QueryRowContext(ctx, `SELECT id, concept, content, source, confidence, tags, status, created_at FROM knowledge_atoms WHERE id=?`, id).
		Scan(&a.ID, &a.Concept, &a.Content, &a.Source, &a.Confidence, &tags, &status, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Atom{}, decerr.New(decerr.KindNotFound, "knowledge atom %s not found", id)
		}
		return Atom{}, fmt.Errorf("knowledge: get: %w", err)
	}
	if tags != "" {
		a.Tags = strings.Split(tags, ",")
	}
	a.Status = Status(status)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return a, nil
}
