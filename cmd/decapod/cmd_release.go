package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"decapod/internal/canon"
	"decapod/internal/decerr"
	"decapod/internal/gitutil"
	"decapod/internal/workunit"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release provenance artifacts and lineage maintenance",
}

var releaseCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Enforce the schema/interface-change changelog policy",
	RunE:  runReleaseCheck,
}

var releaseInventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Write a deterministic, content-hashed repo inventory",
	RunE:  runReleaseInventory,
}

var releaseLineageSyncCmd = &cobra.Command{
	Use:   "lineage-sync",
	Short: "Regenerate the provenance artifact trio from obligation/workunit state",
	RunE:  runReleaseLineageSync,
}

func init() {
	releaseCmd.AddCommand(releaseCheckCmd, releaseInventoryCmd, releaseLineageSyncCmd)
}

// schemaBearingPath reports whether a repo-relative path carries wire-shape
// weight (case-insensitive): anything under constitution/interfaces/, any
// path containing "schema" or "rpcdispatch", or a path ending in manifest.go.
var schemaBearingPath = regexp.MustCompile(`(?i)(constitution/interfaces/|schema|manifest\.go$|rpcdispatch)`)

// runReleaseCheck enforces: any schema/interface-bearing file changed in the
// worktree requires a "- schema:" note under CHANGELOG.md's "## [Unreleased]"
// heading. A clean worktree, or one with no schema-bearing changes, always
// passes.
func runReleaseCheck(cmd *cobra.Command, args []string) error {
	changed, err := gitutil.ChangedFiles(app.Workspace)
	if err != nil {
		return fmt.Errorf("release check: %w", err)
	}

	var schemaChanged []string
	for _, f := range changed {
		if schemaBearingPath.MatchString(f) {
			schemaChanged = append(schemaChanged, f)
		}
	}

	if len(schemaChanged) > 0 {
		noted, err := changelogNotesSchemaChange(app.Workspace)
		if err != nil {
			return fmt.Errorf("release check: %w", err)
		}
		if !noted {
			return decerr.New(decerr.KindInvalidArgument,
				"schema/interface files changed (%s) without a \"- schema:\" note under CHANGELOG.md's [Unreleased] section",
				strings.Join(schemaChanged, ", "))
		}
	}

	return printResult(cmd, app.Format, map[string]any{"cmd": "release.check", "status": "ok", "schema_changed": schemaChanged}, func() {
		fmt.Fprintln(cmd.OutOrStdout(), "release check: ok")
	})
}

// changelogNotesSchemaChange reports whether CHANGELOG.md's "## [Unreleased]"
// section contains a line starting with "- schema:".
func changelogNotesSchemaChange(root string) (bool, error) {
	b, err := os.ReadFile(filepath.Join(root, "CHANGELOG.md"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	lines := strings.Split(string(b), "\n")
	inUnreleased := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			inUnreleased = strings.Contains(strings.ToLower(trimmed), "[unreleased]")
			continue
		}
		if inUnreleased && strings.HasPrefix(trimmed, "- schema:") {
			return true, nil
		}
	}
	return false, nil
}

// inventoryEntry is one file of the repo inventory artifact.
type inventoryEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

var inventorySkipDirs = map[string]bool{
	".git": true, ".decapod": true, "_examples": true, "node_modules": true,
}

func runReleaseInventory(cmd *cobra.Command, args []string) error {
	var entries []inventoryEntry
	err := filepath.WalkDir(app.Workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(app.Workspace, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if inventorySkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(b)
		entries = append(entries, inventoryEntry{
			Path:   filepath.ToSlash(rel),
			SHA256: hex.EncodeToString(sum[:]),
			Bytes:  info.Size(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("release inventory: walk: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	inventory := map[string]any{
		"schema_version": "1.0.0",
		"kind":           "repo_inventory",
		"files":          entries,
	}
	if err := writeGeneratedArtifact(app.Workspace, filepath.Join("artifacts", "inventory", "repo_inventory.json"), inventory); err != nil {
		return fmt.Errorf("release inventory: %w", err)
	}

	return printResult(cmd, app.Format, map[string]any{"cmd": "release.inventory", "status": "ok", "files": len(entries)}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "release inventory: wrote %d files\n", len(entries))
	})
}

func runReleaseLineageSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var obligationCount int
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		if err := workunit.EnsureSchema(ctx, db); err != nil {
			return err
		}
		obligations, err := workunit.ListObligations(ctx, db)
		if err != nil {
			return err
		}
		obligationCount = len(obligations)
		return nil
	})
	if err != nil {
		return fmt.Errorf("release lineage-sync: %w", err)
	}

	artifactManifest := map[string]any{
		"schema_version": "1.0.0",
		"kind":           "artifact_manifest",
		"artifacts":      []any{},
	}
	proofManifest := map[string]any{
		"schema_version": "1.0.0",
		"kind":           "proof_manifest",
		"proofs":         []any{},
		"environment":    map[string]any{"os": runtime.GOOS},
	}
	checklist := map[string]any{
		"schema_version": "1.0.0",
		"kind":           "intent_convergence_checklist",
		"scope":          "release",
		"obligations":    obligationCount,
		"checklist":      []any{},
	}

	if err := writeGeneratedArtifact(app.Workspace, filepath.Join("artifacts", "provenance", "artifact_manifest.json"), artifactManifest); err != nil {
		return fmt.Errorf("release lineage-sync: %w", err)
	}
	if err := writeGeneratedArtifact(app.Workspace, filepath.Join("artifacts", "provenance", "proof_manifest.json"), proofManifest); err != nil {
		return fmt.Errorf("release lineage-sync: %w", err)
	}
	if err := writeGeneratedArtifact(app.Workspace, filepath.Join("artifacts", "provenance", "intent_convergence_checklist.json"), checklist); err != nil {
		return fmt.Errorf("release lineage-sync: %w", err)
	}

	return printResult(cmd, app.Format, map[string]any{"cmd": "release.lineage_sync", "status": "ok"}, func() {
		fmt.Fprintln(cmd.OutOrStdout(), "release lineage-sync: ok")
	})
}

// writeGeneratedArtifact canonicalizes v and writes it under
// .decapod/generated/<relPath>, matching spec.md §6's filesystem layout.
func writeGeneratedArtifact(workspace, relPath string, v any) error {
	path := filepath.Join(workspace, ".decapod", "generated", relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := canon.Bytes(v)
	if err != nil {
		return err
	}
	var pretty map[string]any
	if err := json.Unmarshal(b, &pretty); err == nil {
		if indented, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			b = indented
		}
	}
	return os.WriteFile(path, b, 0o644)
}
