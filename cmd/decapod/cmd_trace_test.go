package main

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"decapod/internal/todostore"
)

func TestRunTraceExportOnEmptyDomain(t *testing.T) {
	newTestApp(t)
	traceExportDomain = "todo"
	t.Cleanup(func() { traceExportDomain = "" })

	require.NoError(t, runTraceExport(newTestCmd(), nil))
}

func TestRunTraceExportReflectsBrokerWrites(t *testing.T) {
	newTestApp(t)
	traceExportDomain = "todo"
	t.Cleanup(func() { traceExportDomain = "" })

	ctx := newTestCmd().Context()
	store := &todostore.Store{Broker: app.Broker("todo")}
	require.NoError(t, app.WithWrite(ctx, func(db *sql.DB) error {
		if err := todostore.EnsureSchema(ctx, db); err != nil {
			return err
		}
		_, err := store.AddTask(ctx, db, "tester", todostore.Task{Title: "ship it"})
		return err
	}))

	events, err := app.Broker("todo").Log.All()
	require.NoError(t, err)
	require.NotEmpty(t, events)

	require.NoError(t, runTraceExport(newTestCmd(), nil))
}
