package workunit

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"decapod/internal/decerr"
)

// ObligationStatus is an obligation's lifecycle state, derived from proof
// evidence rather than transitioned directly.
type ObligationStatus string

const (
	ObligationOpen      ObligationStatus = "open"
	ObligationSatisfied ObligationStatus = "satisfied"
	ObligationBlocked   ObligationStatus = "blocked"
)

// Obligation is one node of the obligation DAG.
type Obligation struct {
	ID        string
	IntentRef string
	Priority  int
	DependsOn []string
	Status    ObligationStatus
}

// EnsureSchema creates the obligations table if absent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		intent_ref TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		depends_on TEXT,
		status TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("workunit: ensure obligation schema: %w", err)
	}
	return nil
}

// AddObligation inserts a new obligation row, defaulting status to Open.
func AddObligation(ctx context.Context, db *sql.DB, o Obligation) error {
	if o.Status == "" {
		o.Status = ObligationOpen
	}
	_, err := db.ExecContext(ctx, `INSERT INTO obligations (id, intent_ref, priority, depends_on, status) VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.IntentRef, o.Priority, joinCSV(o.DependsOn), string(o.Status))
	if err != nil {
		return fmt.Errorf("workunit: add obligation: %w", err)
	}
	return nil
}

// GetObligation fetches a single obligation by ID.
func GetObligation(ctx context.Context, db *sql.DB, id string) (Obligation, error) {
	var o Obligation
	var deps, status string
	err := db.QueryRowContext(ctx, `SELECT id, intent_ref, priority, depends_on, status FROM obligations WHERE id=?`, id).
		Scan(&o.ID, &o.IntentRef, &o.Priority, &deps, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return Obligation{}, decerr.New(decerr.KindNotFound, "obligation %s not found", id)
		}
		return Obligation{}, fmt.Errorf("workunit: get obligation: %w", err)
	}
	o.DependsOn = splitCSV(deps)
	o.Status = ObligationStatus(status)
	return o, nil
}

// ListObligations returns every obligation, ordered by ID.
func ListObligations(ctx context.Context, db *sql.DB) ([]Obligation, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, intent_ref, priority, depends_on, status FROM obligations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("workunit: list obligations: %w", err)
	}
	defer rows.Close()

	var out []Obligation
	for rows.Next() {
		var o Obligation
		var deps, status string
		if err := rows.Scan(&o.ID, &o.IntentRef, &o.Priority, &deps, &status); err != nil {
			return nil, fmt.Errorf("workunit: scan obligation: %w", err)
		}
		o.DependsOn = splitCSV(deps)
		o.Status = ObligationStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// GraphReport summarizes acyclicity-check results over the obligation DAG.
type GraphReport struct {
	HasCycles  bool
	TotalNodes int
	TotalEdges int
}

// ValidateObligationGraph runs Kahn's algorithm over the DependsOn edges of
// every obligation and reports whether a cycle exists.
func ValidateObligationGraph(ctx context.Context, db *sql.DB) (GraphReport, error) {
	obligations, err := ListObligations(ctx, db)
	if err != nil {
		return GraphReport{}, err
	}

	inDegree := map[string]int{}
	adj := map[string][]string{}
	edges := 0
	for _, o := range obligations {
		if _, ok := inDegree[o.ID]; !ok {
			inDegree[o.ID] = 0
		}
		for _, dep := range o.DependsOn {
			adj[dep] = append(adj[dep], o.ID)
			inDegree[o.ID]++
			edges++
		}
	}

	queue := []string{}
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		next := append([]string{}, adj[n]...)
		sort.Strings(next)
		for _, m := range next {
			inDegree[m]--
			if inDegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	return GraphReport{
		HasCycles:  visited != len(inDegree),
		TotalNodes: len(inDegree),
		TotalEdges: edges,
	}, nil
}

// DeriveObligationStatus marks an obligation Satisfied only once a
// STATE_COMMIT proof event has been recorded for it. Before checking proof,
// it first checks the obligation's own DependsOn edges: if any dependency
// isn't yet Satisfied, the obligation is Blocked regardless of its own
// proof state, per spec.md §3's open/satisfied/blocked status set. Absent
// both conditions it stays Open and validation reports "STATE_COMMIT
// missing".
func DeriveObligationStatus(ctx context.Context, db *sql.DB, obligationID string, proofSurfaces []string) (ObligationStatus, error) {
	o, err := GetObligation(ctx, db, obligationID)
	if err != nil {
		return "", err
	}
	for _, depID := range o.DependsOn {
		dep, err := GetObligation(ctx, db, depID)
		if err != nil {
			return "", err
		}
		if dep.Status != ObligationSatisfied {
			if _, err := db.ExecContext(ctx, `UPDATE obligations SET status=? WHERE id=?`, string(ObligationBlocked), obligationID); err != nil {
				return "", fmt.Errorf("workunit: derive obligation status: %w", err)
			}
			return ObligationBlocked, decerr.New(decerr.KindInvalidArgument, "dependency %s not satisfied", depID)
		}
	}

	for _, s := range proofSurfaces {
		if s == "STATE_COMMIT" {
			_, err := db.ExecContext(ctx, `UPDATE obligations SET status=? WHERE id=?`, string(ObligationSatisfied), obligationID)
			if err != nil {
				return "", fmt.Errorf("workunit: derive obligation status: %w", err)
			}
			return ObligationSatisfied, nil
		}
	}
	return ObligationOpen, decerr.New(decerr.KindInvalidArgument, "STATE_COMMIT missing")
}
