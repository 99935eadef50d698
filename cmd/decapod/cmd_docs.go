package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"decapod/internal/constitution"
	"decapod/internal/govmap"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Navigate the embedded constitution corpus",
}

var docsShowCmd = &cobra.Command{
	Use:   "show <topic>",
	Args:  cobra.ExactArgs(1),
	Short: "Show the governing docs for a topic, via the governance map",
	RunE:  runDocsShow,
}

var docsIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Copy the embedded constitution corpus into the workspace",
	RunE:  runDocsIngest,
}

func init() {
	docsCmd.AddCommand(docsShowCmd, docsIngestCmd)
}

func runDocsShow(cmd *cobra.Command, args []string) error {
	topic := args[0]
	refs := govmap.Resolve(topic)

	type docResult struct {
		Path    string `json:"path"`
		Section string `json:"section,omitempty"`
		Text    string `json:"text"`
	}
	var results []docResult
	for _, ref := range refs {
		path, section := splitDocAnchor(string(ref))
		text, err := constitution.Read(path)
		if err != nil {
			return fmt.Errorf("docs show: %w", err)
		}
		results = append(results, docResult{Path: path, Section: section, Text: text})
	}

	return printResult(cmd, app.Format, results, func() {
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "--- %s ---\n%s\n", r.Path, r.Text)
		}
	})
}

func runDocsIngest(cmd *cobra.Command, args []string) error {
	n, err := constitution.Ingest(filepath.Join(app.Workspace, "constitution"))
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"ingested": n}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "ingested %d documents\n", n)
	})
}

func splitDocAnchor(ref string) (path, section string) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '#' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, ""
}
