package main

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"decapod/internal/config"
)

// newTestApp wires the package-global app/logger/workspace the way
// rootCmd's PersistentPreRunE does, without going through cobra's flag
// parsing, so individual runXxx functions can be called directly.
func newTestApp(t *testing.T) string {
	t.Helper()
	logger = zap.NewNop()
	ws := t.TempDir()
	workspace = ws
	app = NewApp(ws, config.DefaultConfig(), "json", "tester")
	t.Cleanup(func() {
		app.Close()
		app = nil
		workspace = ""
	})
	return ws
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}
