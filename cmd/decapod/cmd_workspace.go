package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"decapod/internal/gitutil"
	"decapod/internal/session"
	"decapod/internal/validate"
	"decapod/internal/workunit"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Workspace interlock and publish gating",
}

var workspaceEnsureWatch bool

var workspaceEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Enforce the protected-branch/dirty-worktree interlock",
	RunE:  runWorkspaceEnsure,
}

var workspacePublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Enforce the workunit-verified gate before allowing a publish",
	RunE:  runWorkspacePublish,
}

func init() {
	workspaceEnsureCmd.Flags().BoolVar(&workspaceEnsureWatch, "watch", false,
		"keep re-checking the interlock as the worktree changes (foreground, non-daemon)")
	workspaceCmd.AddCommand(workspaceEnsureCmd, workspacePublishCmd)
}

func checkWorkspaceInterlock(cmd *cobra.Command) (branch string, dirty bool, err error) {
	branch, err = gitutil.CurrentBranch(app.Workspace)
	if err != nil {
		return "", false, fmt.Errorf("workspace ensure: resolve branch: %w", err)
	}
	dirty, err = gitutil.IsDirty(app.Workspace)
	if err != nil {
		return "", false, fmt.Errorf("workspace ensure: check dirty: %w", err)
	}
	if err := session.Interlock(branch, dirty, app.Cfg.ProtectedBranchSet()); err != nil {
		return branch, dirty, err
	}
	return branch, dirty, nil
}

func runWorkspaceEnsure(cmd *cobra.Command, args []string) error {
	branch, dirty, err := checkWorkspaceInterlock(cmd)
	if err != nil {
		return err
	}
	if err := printResult(cmd, app.Format, map[string]any{"branch": branch, "dirty": dirty}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "workspace ensure: %s ok\n", branch)
	}); err != nil {
		return err
	}
	if !workspaceEnsureWatch {
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "workspace ensure: watching %s for changes (ctrl-c to stop)\n", app.Workspace)
	return validate.WatchDirty(cmd.Context(), app.Workspace, 500*time.Millisecond, func() {
		branch, dirty, err := checkWorkspaceInterlock(cmd)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "workspace ensure: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "workspace ensure: %s dirty=%v ok\n", branch, dirty)
	})
}

func runWorkspacePublish(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	branch, err := gitutil.CurrentBranch(app.Workspace)
	if err != nil {
		return fmt.Errorf("workspace publish: resolve branch: %w", err)
	}

	if app.Cfg.Workunit.RequireManifestForPublish {
		if err := workunit.VerifyGateForPublish(ctx, app.Workspace, branch); err != nil {
			return err
		}
	}

	return printResult(cmd, app.Format, map[string]any{"branch": branch}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "workspace publish: %s cleared for publish\n", branch)
	})
}
