package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"decapod/internal/gitutil"
	"decapod/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the validate pipeline's six gates under a shared deadline",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	branch, err := gitutil.CurrentBranch(app.Workspace)
	if err != nil {
		return fmt.Errorf("validate: resolve branch: %w", err)
	}
	dirty, err := gitutil.IsDirty(app.Workspace)
	if err != nil {
		return fmt.Errorf("validate: check dirty: %w", err)
	}
	dirtyCount, err := gitutil.DirtyFileCount(app.Workspace)
	if err != nil {
		return fmt.Errorf("validate: count dirty files: %w", err)
	}

	opts := validate.Options{
		Workspace:       app.Workspace,
		Branch:          branch,
		ProtectedBranch: app.Cfg.ProtectedBranchSet()[branch],
		Dirty:           dirty,
		DirtyFileCount:  dirtyCount,
		Actor:           app.Actor,
		SessionPassword: os.Getenv("DECAPOD_SESSION_PASSWORD"),
		WithWrite:       app.WithWrite,
		MaxDirtyFiles:   app.Cfg.Validate.CommitOftenMaxDirty,
	}

	pipeline := validate.Default()
	if runErr := pipeline.Run(ctx, opts); runErr != nil {
		return runErr
	}

	return printResult(cmd, app.Format, map[string]any{
		"branch": branch,
		"dirty":  dirty,
		"passed": true,
	}, func() {
		fmt.Fprintln(cmd.OutOrStdout(), "validate: all gates passed")
	})
}
