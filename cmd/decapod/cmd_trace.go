package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var traceExportDomain string

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Event-log export for external tooling",
}

var traceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a domain's full event log in file order",
	RunE:  runTraceExport,
}

func init() {
	traceExportCmd.Flags().StringVar(&traceExportDomain, "domain", "todo", "Event-log domain to export")
	traceCmd.AddCommand(traceExportCmd)
}

func runTraceExport(cmd *cobra.Command, args []string) error {
	log := app.Broker(traceExportDomain).Log
	events, err := log.All()
	if err != nil {
		return fmt.Errorf("trace export: %w", err)
	}
	return printResult(cmd, app.Format, events, func() {
		for _, ev := range events {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s %-8s %s\n", ev.TS.Format("2006-01-02T15:04:05Z"), ev.EventType, ev.Status, ev.SubjectID)
		}
	})
}
