package main

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"decapod/internal/session"
	"decapod/internal/todostore"
)

// seedOwnedTask gives app.Actor an open task, satisfying the
// mandatory-TODO gate's ownership check.
func seedOwnedTask(t *testing.T) {
	t.Helper()
	err := app.WithWrite(context.Background(), func(db *sql.DB) error {
		if err := todostore.EnsureSchema(context.Background(), db); err != nil {
			return err
		}
		_, err := todoStore().AddTask(context.Background(), db, app.Actor, todostore.Task{Title: "do the thing"})
		return err
	})
	require.NoError(t, err)
}

func TestRunValidatePassesOnCleanSessionedWorkspace(t *testing.T) {
	ws := newTestApp(t)
	gitInit(t, ws)

	s, err := session.Acquire(ws, app.Actor)
	require.NoError(t, err)
	require.NoError(t, os.Setenv("DECAPOD_SESSION_PASSWORD", s.Password))
	t.Cleanup(func() { os.Unsetenv("DECAPOD_SESSION_PASSWORD") })

	require.NoError(t, os.Setenv("DECAPOD_VALIDATE_SKIP_GIT_GATES", "1"))
	t.Cleanup(func() { os.Unsetenv("DECAPOD_VALIDATE_SKIP_GIT_GATES") })

	seedOwnedTask(t)

	require.NoError(t, runValidate(newTestCmd(), nil))
}

func TestRunValidateFailsWithoutSession(t *testing.T) {
	ws := newTestApp(t)
	gitInit(t, ws)

	require.NoError(t, os.Setenv("DECAPOD_VALIDATE_SKIP_GIT_GATES", "1"))
	t.Cleanup(func() { os.Unsetenv("DECAPOD_VALIDATE_SKIP_GIT_GATES") })

	seedOwnedTask(t)

	err := runValidate(newTestCmd(), nil)
	require.Error(t, err)
}
