package knowledge

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"decapod/internal/decerr"
)

func newTestDB(t *testing.T) *sql.DB {
	dir := t.TempDir()
	db, err := sql.Open("sqlite3", filepath.Join(dir, "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(context.Background(), db))
	return db
}

func TestAddIsContentHashDeduped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a, err := Add(ctx, db, "retry-budget", "cap retries at 3 per op", "session/42", 0.8, []string{"reliability"})
	require.NoError(t, err)
	require.Equal(t, StatusCandidate, a.Status)

	b, err := Add(ctx, db, "retry-budget", "cap retries at 3 per op", "session/43", 0.9, nil)
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM knowledge_atoms`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestPromoteMarksAtomPromoted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a, err := Add(ctx, db, "concept", "content", "", 1.0, nil)
	require.NoError(t, err)

	require.NoError(t, Promote(ctx, db, a.ID))

	got, err := Get(ctx, db, a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPromoted, got.Status)
}

func TestPromoteUnknownIDFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := Promote(ctx, db, "nope")
	require.Error(t, err)
	kind, ok := decerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, decerr.KindNotFound, kind)
}
