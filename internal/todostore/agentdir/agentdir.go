// Package agentdir implements the multi-agent ownership/presence/expertise
// sub-surface named in spec.md §6's CLI enumeration
// (register-agent/ownerships/heartbeat/presence/handoff/add-owner/
// remove-owner/list-owners/register-expertise/expertise) but left undetailed
// by the [MODULE] blocks. Shape is modeled on the BeadsLog RPC protocol's
// agent-identity fields (RoleType, Rig, AgentState, LastActivity).
package agentdir

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AgentStatus mirrors BeadsLog's AgentState vocabulary, narrowed to what
// decapod's presence/heartbeat surface needs.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentIdle    AgentStatus = "idle"
	AgentOffline AgentStatus = "offline"
)

// Agent is one registered participant in the workspace.
type Agent struct {
	AgentID       string      `json:"agent_id"`
	Status        AgentStatus `json:"status"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
}

// Ownership is a (task, agent) role assignment.
type Ownership struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
	Role    string `json:"role"`
}

// EnsureSchema creates the agents, ownerships, and expertise tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			last_heartbeat TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ownerships (
			task_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			role TEXT NOT NULL,
			PRIMARY KEY (task_id, agent_id, role)
		)`,
		`CREATE TABLE IF NOT EXISTS expertise (
			agent_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (agent_id, tag)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("agentdir: ensure schema: %w", err)
		}
	}
	return nil
}

// RegisterAgent upserts an agent record as online.
func RegisterAgent(ctx context.Context, db *sql.DB, agentID string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO agents (agent_id, status, last_heartbeat) VALUES (?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET status=excluded.status, last_heartbeat=excluded.last_heartbeat`,
		agentID, string(AgentOnline), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("agentdir: register agent: %w", err)
	}
	return nil
}

// Heartbeat bumps an agent's last_heartbeat and marks it online.
func Heartbeat(ctx context.Context, db *sql.DB, agentID string) error {
	_, err := db.ExecContext(ctx, `UPDATE agents SET status=?, last_heartbeat=? WHERE agent_id=?`,
		string(AgentOnline), time.Now().UTC().Format(time.RFC3339Nano), agentID)
	if err != nil {
		return fmt.Errorf("agentdir: heartbeat: %w", err)
	}
	return nil
}

// Presence lists agents with their current status, marking any agent whose
// last heartbeat is older than staleAfter as idle and older than 2x
// staleAfter as offline.
func Presence(ctx context.Context, db *sql.DB, staleAfter time.Duration) ([]Agent, error) {
	rows, err := db.QueryContext(ctx, `SELECT agent_id, status, last_heartbeat FROM agents ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("agentdir: presence: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	var out []Agent
	for rows.Next() {
		var a Agent
		var statusStr, hb string
		if err := rows.Scan(&a.AgentID, &statusStr, &hb); err != nil {
			return nil, fmt.Errorf("agentdir: scan agent: %w", err)
		}
		a.Status = AgentStatus(statusStr)
		a.LastHeartbeat, _ = time.Parse(time.RFC3339Nano, hb)
		age := now.Sub(a.LastHeartbeat)
		switch {
		case age > 2*staleAfter:
			a.Status = AgentOffline
		case age > staleAfter:
			a.Status = AgentIdle
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddOwner records an ownership row.
func AddOwner(ctx context.Context, db *sql.DB, taskID, agentID, role string) error {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO ownerships (task_id, agent_id, role) VALUES (?, ?, ?)`, taskID, agentID, role)
	if err != nil {
		return fmt.Errorf("agentdir: add owner: %w", err)
	}
	return nil
}

// RemoveOwner deletes an ownership row.
func RemoveOwner(ctx context.Context, db *sql.DB, taskID, agentID, role string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM ownerships WHERE task_id=? AND agent_id=? AND role=?`, taskID, agentID, role)
	if err != nil {
		return fmt.Errorf("agentdir: remove owner: %w", err)
	}
	return nil
}

// ListOwners returns all ownership rows for a task.
func ListOwners(ctx context.Context, db *sql.DB, taskID string) ([]Ownership, error) {
	rows, err := db.QueryContext(ctx, `SELECT task_id, agent_id, role FROM ownerships WHERE task_id=?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("agentdir: list owners: %w", err)
	}
	defer rows.Close()

	var out []Ownership
	for rows.Next() {
		var o Ownership
		if err := rows.Scan(&o.TaskID, &o.AgentID, &o.Role); err != nil {
			return nil, fmt.Errorf("agentdir: scan owner: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Handoff moves every ownership row for a task from one agent to another.
func Handoff(ctx context.Context, db *sql.DB, taskID, fromAgent, toAgent string) error {
	_, err := db.ExecContext(ctx, `UPDATE ownerships SET agent_id=? WHERE task_id=? AND agent_id=?`, toAgent, taskID, fromAgent)
	if err != nil {
		return fmt.Errorf("agentdir: handoff: %w", err)
	}
	return nil
}

// RegisterExpertise tags an agent with a skill/topic.
func RegisterExpertise(ctx context.Context, db *sql.DB, agentID, tag string) error {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO expertise (agent_id, tag) VALUES (?, ?)`, agentID, tag)
	if err != nil {
		return fmt.Errorf("agentdir: register expertise: %w", err)
	}
	return nil
}

// Expertise lists tags registered for an agent.
func Expertise(ctx context.Context, db *sql.DB, agentID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT tag FROM expertise WHERE agent_id=? ORDER BY tag`, agentID)
	if err != nil {
		return nil, fmt.Errorf("agentdir: expertise: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("agentdir: scan expertise: %w", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}
