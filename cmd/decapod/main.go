// Package main implements the decapod CLI: the external-collaborator
// surface around the governance kernel (internal/broker, internal/validate,
// internal/capsule, internal/plan, internal/workunit, internal/rpcdispatch,
// and friends). Per spec.md §1, flag parsing, help rendering, and git
// plumbing live here, outside the kernel itself.
//
// # File Index
//
// Entry Point & Global State:
//   - main.go           - Entry point, rootCmd, global flags, init()
//   - app.go            - App: workspace/config/pool bootstrap shared by every command
//
// Commands:
//   - cmd_init.go       - init
//   - cmd_session.go    - session acquire
//   - cmd_todo.go       - todo {add|list|get|done|...} + agentdir sub-surface
//   - cmd_validate.go   - validate
//   - cmd_docs.go       - docs {show|ingest}
//   - cmd_workspace.go  - workspace {ensure|publish}
//   - cmd_govern.go     - govern {plan|workunit|capsule|health}
//   - cmd_data.go       - data {schema|knowledge|broker}
//   - cmd_release.go    - release {check|inventory|lineage-sync}
//   - cmd_trace.go      - trace {export}
//   - cmd_rpc.go        - rpc [--stdin], the static op routing table
//   - cmd_misc.go       - capabilities, version
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"decapod/internal/config"
	"decapod/internal/logging"
)

var (
	verbose   bool
	workspace string
	timeout   time.Duration
	format    string
	actor     string

	logger *zap.Logger
	app    *App
)

// rootCmd is decapod's entry point.
var rootCmd = &cobra.Command{
	Use:   "decapod",
	Short: "decapod - governance kernel for multi-agent task execution",
	Long: `decapod is a daemonless governance kernel: an event-sourced store with
crash-consistent replay, a claim/proof/workunit data plane, a context-capsule
builder, an op-gated RPC dispatcher, and a bounded-time validate pipeline.

The kernel makes no LLM calls and spawns no background processes; every
invocation does its work and returns.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		} else if abs, err := filepath.Abs(ws); err == nil {
			ws = abs
		}
		workspace = ws

		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}

		cfg, err := config.Load(filepath.Join(ws, ".decapod", "config.yaml"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Check(); err != nil {
			return err
		}

		app = NewApp(ws, cfg, format, resolveActor())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func resolveActor() string {
	if actor != "" {
		return actor
	}
	if a := os.Getenv("AGENT_ID"); a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown-actor"
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "Output format: text|json")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Acting identity (default: $AGENT_ID or $USER)")

	rootCmd.AddCommand(
		initCmd,
		sessionCmd,
		todoCmd,
		validateCmd,
		docsCmd,
		workspaceCmd,
		governCmd,
		dataCmd,
		releaseCmd,
		traceCmd,
		rpcCmd,
		capabilitiesCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
