// Package dbpool manages per-path SQLite connection pools with the pragma
// sequence and write-serialization discipline a daemonless, multi-process
// governance kernel needs: every writer across every invocation of the CLI
// must serialize through the same per-path file lock before it ever opens a
// transaction.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"decapod/internal/decerr"
)

// Config tunes pool behavior. Zero-value Config uses sane defaults.
type Config struct {
	BusyTimeout   time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	MaxOpenConns  int
}

func (c Config) withDefaults() Config {
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 8
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 25 * time.Millisecond
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 4
	}
	return c
}

// Pool hands out *sql.DB handles keyed by absolute database path, each
// configured with WAL journaling and bounded busy-wait retries.
type Pool struct {
	mu    sync.Mutex
	cfg   Config
	dbs   map[string]*sql.DB
	locks map[string]*flock.Flock
}

// New constructs a Pool. cfg's zero value is a usable default.
func New(cfg Config) *Pool {
	return &Pool{
		cfg:   cfg.withDefaults(),
		dbs:   map[string]*sql.DB{},
		locks: map[string]*flock.Flock{},
	}
}

// Preflight verifies the parent directory of path exists, is a directory,
// and is writable, before the sqlite3 driver is ever invoked.
func Preflight(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return decerr.Wrap(decerr.KindStoragePreflightFailed, err, "STORAGE_PREFLIGHT_FAILED: directory %s unreachable", dir)
	}
	if !info.IsDir() {
		return decerr.New(decerr.KindStoragePreflightFailed, "STORAGE_PREFLIGHT_FAILED: %s is not a directory", dir)
	}
	probe := filepath.Join(dir, ".decapod-preflight")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return decerr.Wrap(decerr.KindStoragePreflightFailed, err, "STORAGE_PREFLIGHT_FAILED: directory %s not writable", dir)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

func faultInjected() error {
	if os.Getenv("DECAPOD_SQLITE_FAULT_STAGE") == "open" {
		return decerr.New(decerr.KindRusqliteError, "SQLITE_FAULT_INJECTED extended_code=522")
	}
	return nil
}

func (p *Pool) open(path string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.dbs[path]; ok {
		return db, nil
	}
	if err := faultInjected(); err != nil {
		return nil, err
	}
	if err := Preflight(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, decerr.Wrap(decerr.KindStoragePreflightFailed, err, "STORAGE_PREFLIGHT_FAILED: mkdir %s", filepath.Dir(path))
	}

	db, err := sql.Open(driverName, path+fmt.Sprintf("?_busy_timeout=%d", p.cfg.BusyTimeout.Milliseconds()))
	if err != nil {
		return nil, decerr.Wrap(decerr.KindRusqliteError, err, "open %s", path)
	}
	db.SetMaxOpenConns(p.cfg.MaxOpenConns)
	db.SetMaxIdleConns(p.cfg.MaxOpenConns)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", p.cfg.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, decerr.Wrap(decerr.KindRusqliteError, err, "pragma %q", stmt)
		}
	}

	p.dbs[path] = db
	p.locks[path] = flock.New(path + ".lock")
	return db, nil
}

// WithRead runs fn against path's pool connection. Reads never take the
// write file lock.
func (p *Pool) WithRead(ctx context.Context, path string, fn func(*sql.DB) error) error {
	db, err := p.open(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return decerr.Wrap(decerr.KindValidateTimeoutOrLock, err, "VALIDATE_TIMEOUT_OR_LOCK")
	}
	return fn(db)
}

// WithWrite serializes across every process touching path via a
// gofrs/flock file lock, retrying with exponential backoff up to
// cfg.MaxRetries before surfacing decerr.KindDatabaseBusy.
func (p *Pool) WithWrite(ctx context.Context, path string, fn func(*sql.DB) error) error {
	db, err := p.open(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	lock := p.locks[path]
	p.mu.Unlock()

	backoff := p.cfg.RetryBackoff
	var lockErr error
	locked := false
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return decerr.Wrap(decerr.KindValidateTimeoutOrLock, err, "VALIDATE_TIMEOUT_OR_LOCK")
		}
		ok, err := lock.TryLock()
		if err != nil {
			lockErr = err
		} else if ok {
			locked = true
			break
		}
		select {
		case <-ctx.Done():
			return decerr.Wrap(decerr.KindValidateTimeoutOrLock, ctx.Err(), "VALIDATE_TIMEOUT_OR_LOCK")
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if !locked {
		if lockErr != nil {
			return decerr.Wrap(decerr.KindDatabaseBusy, lockErr, "database busy after %d attempts", p.cfg.MaxRetries)
		}
		return decerr.New(decerr.KindDatabaseBusy, "database busy after %d attempts", p.cfg.MaxRetries)
	}
	defer lock.Unlock()

	return fn(db)
}

// Close closes every pooled connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for path, db := range p.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.dbs, path)
		delete(p.locks, path)
	}
	return firstErr
}
