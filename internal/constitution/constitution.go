// Package constitution embeds decapod's governing document corpus and
// serves it read-only. Modeled on the teacher's go:embed defaults pattern
// (internal/core/defaults) and embedded_store.go's "extract and serve
// read-only" shape — here no extraction step is needed, since markdown is
// served directly from the embedded fs.FS. Per spec.md §1 this corpus is a
// static, out-of-scope read-only index: decapod never branches on its
// content, only on the governance map that points into it.
package constitution

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed plugins/*.md specs/*.md interfaces/*.md core/*.md AGENTS.md
var embedded embed.FS

// FS exposes the embedded corpus as a read-only fs.FS.
var FS fs.FS = embedded

// Read returns the content of a document at path (relative to the corpus
// root, no leading slash, section anchors stripped by the caller).
func Read(path string) (string, error) {
	b, err := fs.ReadFile(FS, path)
	if err != nil {
		return "", fmt.Errorf("constitution: read %s: %w", path, err)
	}
	return string(b), nil
}

// Ingest copies every embedded document into destRoot, preserving relative
// paths, without overwriting files that already exist — the one-time
// "docs ingest" operation that lets an operator override defaults locally.
func Ingest(destRoot string) (int, error) {
	n := 0
	err := fs.WalkDir(FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		dest := filepath.Join(destRoot, path)
		if _, statErr := os.Stat(dest); statErr == nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		b, err := fs.ReadFile(FS, path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, b, 0o644); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("constitution: ingest: %w", err)
	}
	return n, nil
}
