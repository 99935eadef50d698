package agentdir

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "agents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(context.Background(), db))
	return db
}

func TestRegisterAndHeartbeat(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	require.NoError(t, RegisterAgent(ctx, db, "agent-1"))
	require.NoError(t, Heartbeat(ctx, db, "agent-1"))

	agents, err := Presence(ctx, db, time.Hour)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, AgentOnline, agents[0].Status)
}

func TestOwnershipAddRemoveListAndHandoff(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, AddOwner(ctx, db, "T_1", "agent-1", "primary"))
	owners, err := ListOwners(ctx, db, "T_1")
	require.NoError(t, err)
	require.Len(t, owners, 1)

	require.NoError(t, Handoff(ctx, db, "T_1", "agent-1", "agent-2"))
	owners, err = ListOwners(ctx, db, "T_1")
	require.NoError(t, err)
	require.Len(t, owners, 1)
	require.Equal(t, "agent-2", owners[0].AgentID)

	require.NoError(t, RemoveOwner(ctx, db, "T_1", "agent-2", "primary"))
	owners, err = ListOwners(ctx, db, "T_1")
	require.NoError(t, err)
	require.Empty(t, owners)
}

func TestExpertiseRegisterAndList(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	require.NoError(t, RegisterExpertise(ctx, db, "agent-1", "go"))
	require.NoError(t, RegisterExpertise(ctx, db, "agent-1", "sqlite"))

	tags, err := Expertise(ctx, db, "agent-1")
	require.NoError(t, err)
	require.Equal(t, []string{"go", "sqlite"}, tags)
}
