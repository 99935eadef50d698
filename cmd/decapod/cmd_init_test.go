package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunInitCreatesSchemaAndIngestsDocs(t *testing.T) {
	ws := newTestApp(t)

	require.NoError(t, runInit(newTestCmd(), nil))

	for _, dir := range []string{"data", "generated/workunits", "logs"} {
		info, err := os.Stat(filepath.Join(ws, ".decapod", dir))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}

	_, err := os.Stat(filepath.Join(ws, "constitution", "AGENTS.md"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, app.WithRead(ctx, func(db *sql.DB) error {
		var name string
		return db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='tasks'`).Scan(&name)
	}))
}

func TestRunInitForceOverwritesConfig(t *testing.T) {
	ws := newTestApp(t)
	require.NoError(t, runInit(newTestCmd(), nil))

	cfgPath := filepath.Join(ws, ".decapod", "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("actor: tampered\n"), 0o644))

	forceInit = true
	t.Cleanup(func() { forceInit = false })
	require.NoError(t, runInit(newTestCmd(), nil))

	b, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	require.NotContains(t, string(b), "tampered")
}
