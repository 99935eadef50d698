package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"decapod/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session acquisition and workspace credentials",
}

var sessionAcquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Acquire (or reuse) this worktree's session password",
	RunE:  runSessionAcquire,
}

func init() {
	sessionCmd.AddCommand(sessionAcquireCmd)
}

func runSessionAcquire(cmd *cobra.Command, args []string) error {
	s, err := session.Acquire(app.Workspace, app.Actor)
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, s, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "session acquired for %s (password in %s)\n", s.AgentID, session.Path(app.Workspace))
	})
}
