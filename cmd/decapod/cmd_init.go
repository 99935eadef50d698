package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"decapod/internal/claimhealth"
	"decapod/internal/config"
	"decapod/internal/constitution"
	"decapod/internal/knowledge"
	"decapod/internal/todostore"
	"decapod/internal/todostore/agentdir"
	"decapod/internal/workunit"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a decapod workspace",
	Long: `Creates .decapod/{data,generated,logs}, writes a default config.yaml if
absent, and ensures every domain's SQLite schema exists.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config.yaml with defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	for _, dir := range []string{"data", "generated/workunits", "generated/artifacts/capsules",
		"generated/artifacts/provenance", "generated/artifacts/inventory", "generated/policy",
		"generated/plans", "logs"} {
		if err := ensureWorkspaceDir(app.Workspace, ".decapod", dir); err != nil {
			return fmt.Errorf("init: mkdir %s: %w", dir, err)
		}
	}

	cfgPath := filepath.Join(app.Workspace, ".decapod", "config.yaml")
	if forceInit {
		if err := config.DefaultConfig().Save(cfgPath); err != nil {
			return fmt.Errorf("init: write default config: %w", err)
		}
	} else if _, err := config.Load(cfgPath); err == nil {
		if err := app.Cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("init: persist config: %w", err)
		}
	}

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		schemas := []func(context.Context, *sql.DB) error{
			todostore.EnsureSchema,
			todostore.EnsureCommentSchema,
			agentdir.EnsureSchema,
			workunit.EnsureSchema,
			claimhealth.EnsureSchema,
			knowledge.EnsureSchema,
		}
		for _, ensure := range schemas {
			if err := ensure(ctx, db); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("init: ensure schema: %w", err)
	}

	n, err := constitution.Ingest(filepath.Join(app.Workspace, "constitution"))
	if err != nil {
		return fmt.Errorf("init: ingest constitution: %w", err)
	}

	return printResult(cmd, app.Format, map[string]any{
		"workspace":         app.Workspace,
		"constitution_docs": n,
	}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "initialized decapod workspace at %s (%d constitution docs ingested)\n", app.Workspace, n)
	})
}
