package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at release time; left as the development default in a
// source checkout.
var version = "dev"

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List the RPC ops this binary supports",
	RunE:  runCapabilities,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the decapod version",
	RunE:  runVersion,
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	ops := rpcOpNames()
	return printResult(cmd, app.Format, map[string]any{"ops": ops}, func() {
		for _, op := range ops {
			fmt.Fprintln(cmd.OutOrStdout(), op)
		}
	})
}

func runVersion(cmd *cobra.Command, args []string) error {
	return printResult(cmd, app.Format, map[string]any{"version": version}, func() {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	})
}
