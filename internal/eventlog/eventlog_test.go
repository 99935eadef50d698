package eventlog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func TestAppendAndStreamOrdered(t *testing.T) {
	dir := t.TempDir()
	log := Open(filepath.Join(dir, "todo.events.jsonl"))

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(Event{
			TS:        time.Now(),
			EventID:   NewEventID(),
			EventType: "task.add",
			Status:    "success",
			SubjectID: "T_1",
		}))
	}

	all, err := log.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		require.True(t, all[i-1].EventID < all[i].EventID, "ULIDs must sort monotonically")
	}
}

func TestStreamOnMissingFileIsNoop(t *testing.T) {
	log := Open(filepath.Join(t.TempDir(), "absent.events.jsonl"))
	all, err := log.All()
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestRebuildReplaysFullLog(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "todo.events.jsonl")
	log := Open(eventsPath)
	require.NoError(t, log.Append(Event{EventID: NewEventID(), EventType: "task.add", Status: "success", SubjectID: "T_1"}))
	require.NoError(t, log.Append(Event{EventID: NewEventID(), EventType: "task.status", Status: "success", SubjectID: "T_1", Payload: []byte(`{"status":"done"}`)}))

	db, err := sql.Open("sqlite3", filepath.Join(dir, "todo.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS tasks (id TEXT PRIMARY KEY, status TEXT)`)
	require.NoError(t, err)

	n, err := Rebuild(context.Background(), db, eventsPath,
		func(tx *sql.Tx) error { _, err := tx.Exec(`DELETE FROM tasks`); return err },
		func(tx *sql.Tx, ev Event) error {
			switch ev.EventType {
			case "task.add":
				_, err := tx.Exec(`INSERT OR REPLACE INTO tasks (id, status) VALUES (?, 'open')`, ev.SubjectID)
				return err
			case "task.status":
				_, err := tx.Exec(`UPDATE tasks SET status='done' WHERE id=?`, ev.SubjectID)
				return err
			}
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM tasks WHERE id='T_1'`).Scan(&status))
	require.Equal(t, "done", status)
}
