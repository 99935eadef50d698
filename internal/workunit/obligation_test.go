package workunit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newObligationDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "obligations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(context.Background(), db))
	return db
}

func TestValidateObligationGraphAcyclic(t *testing.T) {
	db := newObligationDB(t)
	ctx := context.Background()
	require.NoError(t, AddObligation(ctx, db, Obligation{ID: "O1", IntentRef: "i1"}))
	require.NoError(t, AddObligation(ctx, db, Obligation{ID: "O2", IntentRef: "i2", DependsOn: []string{"O1"}}))

	report, err := ValidateObligationGraph(ctx, db)
	require.NoError(t, err)
	require.False(t, report.HasCycles)
	require.Equal(t, 2, report.TotalNodes)
	require.Equal(t, 1, report.TotalEdges)
}

func TestValidateObligationGraphDetectsCycle(t *testing.T) {
	db := newObligationDB(t)
	ctx := context.Background()
	require.NoError(t, AddObligation(ctx, db, Obligation{ID: "O1", IntentRef: "i1", DependsOn: []string{"O2"}}))
	require.NoError(t, AddObligation(ctx, db, Obligation{ID: "O2", IntentRef: "i2", DependsOn: []string{"O1"}}))

	report, err := ValidateObligationGraph(ctx, db)
	require.NoError(t, err)
	require.True(t, report.HasCycles)
}

func TestDeriveObligationStatusRequiresStateCommit(t *testing.T) {
	db := newObligationDB(t)
	ctx := context.Background()
	require.NoError(t, AddObligation(ctx, db, Obligation{ID: "O1", IntentRef: "i1"}))

	_, err := DeriveObligationStatus(ctx, db, "O1", []string{"ci"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "STATE_COMMIT missing")

	status, err := DeriveObligationStatus(ctx, db, "O1", []string{"STATE_COMMIT"})
	require.NoError(t, err)
	require.Equal(t, ObligationSatisfied, status)
}

func TestDeriveObligationStatusBlockedByUnsatisfiedDependency(t *testing.T) {
	db := newObligationDB(t)
	ctx := context.Background()
	require.NoError(t, AddObligation(ctx, db, Obligation{ID: "O1", IntentRef: "i1"}))
	require.NoError(t, AddObligation(ctx, db, Obligation{ID: "O2", IntentRef: "i2", DependsOn: []string{"O1"}}))

	status, err := DeriveObligationStatus(ctx, db, "O2", []string{"STATE_COMMIT"})
	require.Error(t, err)
	require.Equal(t, ObligationBlocked, status)
	require.Contains(t, err.Error(), "O1 not satisfied")

	got, err := GetObligation(ctx, db, "O2")
	require.NoError(t, err)
	require.Equal(t, ObligationBlocked, got.Status)

	_, err = DeriveObligationStatus(ctx, db, "O1", []string{"STATE_COMMIT"})
	require.NoError(t, err)

	status, err = DeriveObligationStatus(ctx, db, "O2", nil)
	require.Error(t, err)
	require.Equal(t, ObligationOpen, status)
	require.Contains(t, err.Error(), "STATE_COMMIT missing")
}
