package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"decapod/internal/auditlog"
	"decapod/internal/broker"
	"decapod/internal/config"
	"decapod/internal/dbpool"
	"decapod/internal/decerr"
)

// App bundles the workspace-scoped state every command needs: resolved
// config, the shared connection pool, and the audit writer. One App is
// built per invocation in rootCmd's PersistentPreRunE and closed on exit.
type App struct {
	Workspace string
	Cfg       *config.Config
	Format    string
	Actor     string
	Pool      *dbpool.Pool
	Audit     *auditlog.Writer
}

// NewApp constructs the per-invocation App, seeding the pool from the
// loaded config's storage tuning.
func NewApp(workspace string, cfg *config.Config, format, actor string) *App {
	return &App{
		Workspace: workspace,
		Cfg:       cfg,
		Format:    format,
		Actor:     actor,
		Pool: dbpool.New(dbpool.Config{
			BusyTimeout:  cfg.GetBusyTimeout(),
			MaxOpenConns: cfg.Storage.MaxOpenConns,
			MaxRetries:   cfg.Storage.MaxRetries,
		}),
		Audit: auditlog.Open(workspace),
	}
}

// Close releases the App's pooled connections.
func (a *App) Close() {
	if a.Pool != nil {
		_ = a.Pool.Close()
	}
}

// DBPath returns the single SQLite file decapod derives every domain's
// tables into; the event log, not this file, is authoritative (spec.md §4.3).
func (a *App) DBPath() string {
	return filepath.Join(a.Workspace, ".decapod", "data", "decapod.db")
}

// EventsPath returns the event log path for one domain.
func (a *App) EventsPath(domain string) string {
	return filepath.Join(a.Workspace, ".decapod", "data", domain+".events.jsonl")
}

// Broker returns a fresh broker.Broker bound to domain's event log, mirroring
// every WithConn outcome into the shared audit trail.
func (a *App) Broker(domain string) *broker.Broker {
	return broker.New(domain, a.EventsPath(domain)).WithAudit(a.Audit)
}

// WithWrite opens a write-scoped connection to the shared database, per
// spec.md §4.2's with_write contract.
func (a *App) WithWrite(ctx context.Context, fn func(*sql.DB) error) error {
	return a.Pool.WithWrite(ctx, a.DBPath(), fn)
}

// WithRead opens a read-scoped connection to the shared database.
func (a *App) WithRead(ctx context.Context, fn func(*sql.DB) error) error {
	return a.Pool.WithRead(ctx, a.DBPath(), fn)
}

// printResult renders v as text (via textFn) or as indented JSON, per the
// --format flag shared by every mutating command (spec.md §6).
func printResult(cmd *cobra.Command, format string, v any, textFn func()) error {
	if format == "json" {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}
	textFn()
	return nil
}

// exitCodeFor maps a typed decerr.Error to a stable non-zero exit code;
// any other error exits 1 (spec.md §6: "non-zero on any typed failure").
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := decerr.KindOf(err); ok {
		return 2
	}
	return 1
}

// ensureWorkspaceDir creates a directory under the workspace if absent.
func ensureWorkspaceDir(parts ...string) error {
	return os.MkdirAll(filepath.Join(parts...), 0o755)
}
