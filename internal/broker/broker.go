// Package broker is decapod's write gateway: every state-changing database
// operation is bracketed by a "pending" event before and a "success" or
// "failure" terminal event after, so a crash mid-write is always detectable
// by replaying the log and pairing events by event_id.
package broker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"decapod/internal/auditlog"
	"decapod/internal/decerr"
	"decapod/internal/eventlog"
)

// Broker brackets writes against a single domain's event log and pool.
// Audit is optional: a nil Audit simply skips the audit line, so brokers
// built inside tests need not construct one.
type Broker struct {
	Domain string
	Log    *eventlog.Log
	Audit  *auditlog.Writer
}

// New returns a Broker for the given domain, appending to eventsPath.
func New(domain, eventsPath string) *Broker {
	return &Broker{Domain: domain, Log: eventlog.Open(eventsPath)}
}

// WithAudit returns b with its audit writer set, for callers that want
// broker outcomes mirrored into the operator-facing audit trail.
func (b *Broker) WithAudit(w *auditlog.Writer) *Broker {
	b.Audit = w
	return b
}

// routeDisabled reports whether DECAPOD_GROUP_BROKER_DISABLE is set.
func routeDisabled() bool {
	return os.Getenv("DECAPOD_GROUP_BROKER_DISABLE") == "1"
}

// routeEnforced reports whether DECAPOD_GROUP_BROKER_ENFORCE_ROUTE is set.
func routeEnforced() bool {
	return os.Getenv("DECAPOD_GROUP_BROKER_ENFORCE_ROUTE") == "1"
}

// WithConn runs fn inside a transaction on db, bracketed by a pending event
// before and a success/failure terminal event after, both sharing fn's
// event_id prefix so VerifyReplay can pair them.
//
// If DECAPOD_GROUP_BROKER_DISABLE=1, callers bypass the event bracketing and
// run fn directly inside a plain transaction — unless
// DECAPOD_GROUP_BROKER_ENFORCE_ROUTE=1 is also set, in which case the bypass
// itself is rejected with decerr.KindBrokerRouteRequired.
func (b *Broker) WithConn(ctx context.Context, db *sql.DB, actor, subjectID, op string, fn func(*sql.Tx) error) error {
	start := time.Now()

	if routeDisabled() {
		if routeEnforced() {
			return decerr.New(decerr.KindBrokerRouteRequired, "BROKER_ROUTE_REQUIRED: op %q must go through broker.WithConn", op)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("broker: begin (bypass): %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	eventID := eventlog.NewEventID()
	now := time.Now().UTC()

	if err := b.Log.Append(eventlog.Event{
		TS: now, EventID: eventID, EventType: op, Status: "pending",
		SubjectID: subjectID, Actor: actor,
	}); err != nil {
		return fmt.Errorf("broker: append pending: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		b.terminal(eventID, op, subjectID, actor, "failure", err.Error())
		b.audit(op, actor, subjectID, "failure", start)
		return fmt.Errorf("broker: begin: %w", err)
	}

	fnErr := fn(tx)
	if fnErr != nil {
		tx.Rollback()
		reason := fnErr.Error()
		if kind, ok := decerr.KindOf(fnErr); ok {
			reason = string(kind)
		}
		b.terminal(eventID, op, subjectID, actor, "failure", reason)
		b.audit(op, actor, subjectID, "failure", start)
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		b.terminal(eventID, op, subjectID, actor, "failure", err.Error())
		b.audit(op, actor, subjectID, "failure", start)
		return fmt.Errorf("broker: commit: %w", err)
	}

	b.terminal(eventID, op, subjectID, actor, "success", "")
	b.audit(op, actor, subjectID, "success", start)
	return nil
}

// audit mirrors a WithConn outcome into the operator-facing audit trail.
// A nil Audit (the common case in tests) is a no-op.
func (b *Broker) audit(op, actor, subjectID, outcome string, start time.Time) {
	if b.Audit == nil {
		return
	}
	b.Audit.Write(auditlog.Record{
		TS: time.Now().UTC(), Category: auditlog.CategoryBroker, Op: op,
		Actor: actor, SubjectID: subjectID, Outcome: outcome,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

func (b *Broker) terminal(eventID, op, subjectID, actor, status, reason string) {
	payload := []byte("null")
	if reason != "" {
		payload = []byte(fmt.Sprintf(`{"status_reason":%q}`, reason))
	}
	_ = b.Log.Append(eventlog.Event{
		TS: time.Now().UTC(), EventID: eventID, EventType: op, Status: status,
		SubjectID: subjectID, Actor: actor, Payload: payload,
	})
}
