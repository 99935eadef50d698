package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"decapod/internal/todostore"
)

func ensureTodoSchema(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, app.WithWrite(ctx, func(db *sql.DB) error {
		return todostore.EnsureSchema(ctx, db)
	}))
}

func TestRunTodoAddListGetAndTransition(t *testing.T) {
	newTestApp(t)
	ensureTodoSchema(t)

	todoTitle = "ship the release"
	todoPriority = "high"
	todoTags = []string{"release"}
	t.Cleanup(func() { todoTitle, todoPriority, todoTags, todoParent = "", "", nil, "" })

	require.NoError(t, runTodoAdd(newTestCmd(), nil))

	var tasks []todostore.Task
	ctx := context.Background()
	require.NoError(t, app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		tasks, err = todostore.ListTasks(ctx, db, "")
		return err
	}))
	require.Len(t, tasks, 1)
	id := tasks[0].ID

	require.NoError(t, runTodoGet(newTestCmd(), []string{id}))

	todoOwner = app.Actor
	t.Cleanup(func() { todoOwner = "" })
	require.NoError(t, runTodoClaim(newTestCmd(), []string{id}))

	require.NoError(t, runTodoTransition(todostore.StatusDone)(newTestCmd(), []string{id}))

	var got todostore.Task
	require.NoError(t, app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		got, err = todostore.GetTask(ctx, db, id)
		return err
	}))
	require.Equal(t, todostore.StatusDone, got.Status)
}

func TestRunTodoRegisterAgentAndHeartbeat(t *testing.T) {
	newTestApp(t)
	ensureTodoSchema(t)

	require.NoError(t, runTodoRegisterAgent(newTestCmd(), []string{"agent-1"}))
	require.NoError(t, runTodoHeartbeat(newTestCmd(), []string{"agent-1"}))
	require.NoError(t, runTodoPresence(newTestCmd(), nil))
}
