package claimhealth

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the claims and proof_events tables if absent,
// mirroring the teacher's NewLocalStore initialize() idiom of idempotent
// CREATE TABLE IF NOT EXISTS statements run once per pool connection.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			kind TEXT NOT NULL,
			provenance TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS proof_events (
			event_id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL REFERENCES claims(id),
			ts TEXT NOT NULL,
			surface TEXT NOT NULL,
			result TEXT NOT NULL,
			sla_seconds INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proof_events_claim ON proof_events(claim_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("claimhealth: ensure schema: %w", err)
		}
	}
	return nil
}

// SaveClaim inserts or replaces a claim row.
func SaveClaim(ctx context.Context, db *sql.DB, c Claim) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO claims (id, subject, kind, provenance, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Subject, c.Kind, c.Provenance, formatTimestamp(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("claimhealth: save claim %s: %w", c.ID, err)
	}
	return nil
}

// RecordProofEvent appends one proof event against an existing claim.
func RecordProofEvent(ctx context.Context, db *sql.DB, ev ProofEvent) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO proof_events (event_id, claim_id, ts, surface, result, sla_seconds) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.ClaimID, formatTimestamp(ev.TS), ev.Surface, ev.Result, ev.SLASeconds)
	if err != nil {
		return fmt.Errorf("claimhealth: record proof event %s: %w", ev.EventID, err)
	}
	return nil
}

// LoadClaim fetches a claim by ID.
func LoadClaim(ctx context.Context, db *sql.DB, id string) (Claim, error) {
	var c Claim
	var createdAt string
	err := db.QueryRowContext(ctx, `SELECT id, subject, kind, provenance, created_at FROM claims WHERE id=?`, id).
		Scan(&c.ID, &c.Subject, &c.Kind, &c.Provenance, &createdAt)
	if err != nil {
		return Claim{}, fmt.Errorf("claimhealth: load claim %s: %w", id, err)
	}
	c.CreatedAt, err = parseTimestamp(createdAt)
	return c, err
}

// LoadProofEvents fetches every proof event recorded against a claim.
func LoadProofEvents(ctx context.Context, db *sql.DB, claimID string) ([]ProofEvent, error) {
	rows, err := db.QueryContext(ctx, `SELECT event_id, claim_id, ts, surface, result, sla_seconds FROM proof_events WHERE claim_id=?`, claimID)
	if err != nil {
		return nil, fmt.Errorf("claimhealth: load proof events: %w", err)
	}
	defer rows.Close()

	var out []ProofEvent
	for rows.Next() {
		var ev ProofEvent
		var ts string
		if err := rows.Scan(&ev.EventID, &ev.ClaimID, &ts, &ev.Surface, &ev.Result, &ev.SLASeconds); err != nil {
			return nil, fmt.Errorf("claimhealth: scan proof event: %w", err)
		}
		ev.TS, err = parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
