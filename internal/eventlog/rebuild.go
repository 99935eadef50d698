package eventlog

import (
	"context"
	"database/sql"
	"fmt"
)

// Applier folds a single event into the derived table(s) of a domain store,
// inside an open transaction. Returning an error aborts the whole rebuild.
type Applier func(tx *sql.Tx, ev Event) error

// Rebuild truncates the domain's derived table(s) via reset, then replays
// every event in the log through apply, matching the
// "rebuild_db_from_events" contract: the log is always authoritative, and a
// rebuild is a full replay, never an incremental patch.
func Rebuild(ctx context.Context, db *sql.DB, eventsPath string, reset func(*sql.Tx) error, apply Applier) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("eventlog: begin rebuild tx: %w", err)
	}
	defer tx.Rollback()

	if err := reset(tx); err != nil {
		return 0, fmt.Errorf("eventlog: reset derived table: %w", err)
	}

	log := Open(eventsPath)
	n := 0
	err = log.Stream(func(ev Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := apply(tx, ev); err != nil {
			return fmt.Errorf("eventlog: apply event %s: %w", ev.EventID, err)
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("eventlog: commit rebuild tx: %w", err)
	}
	return n, nil
}
