// Package capsule builds decapod's Context Capsule: a deterministic,
// content-hashed snapshot of the governing docs for a (topic, scope) pair,
// per spec.md §4.6.
package capsule

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"decapod/internal/canon"
	"decapod/internal/decerr"
	"decapod/internal/govmap"
)

// Source is one governing-doc reference pulled into a capsule.
type Source struct {
	Path    string `json:"path"`
	Section string `json:"section"`
}

// Capsule is the canonical, hashable snapshot built for one (topic, scope).
type Capsule struct {
	SchemaVersion int       `json:"schema_version"`
	Topic         string    `json:"topic"`
	Scope         string    `json:"scope"`
	TaskID        string    `json:"task_id,omitempty"`
	WorkunitID    string    `json:"workunit_id,omitempty"`
	Sources       []Source  `json:"sources" canon:"set"`
	Snippets      []string  `json:"snippets" canon:"set"`
	Policy        string    `json:"policy"`
	CapsuleHash   string    `json:"capsule_hash"`
}

const schemaVersion = 1

// MaxSnippetLen bounds how much of a source doc is pulled into a capsule;
// the policy index may override this per scope in a fuller implementation,
// but a single conservative bound keeps capsules small and deterministic.
const MaxSnippetLen = 2000

// ScopeResolver supplies the text content backing a source reference, and
// decides whether a (topic, scope) request is permitted at all. A real
// deployment resolves sources from the embedded constitution FS and a
// policy index; tests can substitute a fake.
type ScopeResolver interface {
	AllowScope(topic, scope string) bool
	ReadSource(path string) (string, error)
}

// Build resolves topic's governance-map sources, truncates and dedups them,
// computes the canonical hash twice (zeroed, then filled) so the result is
// idempotent, and fails closed with decerr.KindCapsuleScopeDenied if the
// resolver denies the scope.
func Build(ctx context.Context, resolver ScopeResolver, topic, scope, taskID, workunitID string) (Capsule, error) {
	if !resolver.AllowScope(topic, scope) {
		return Capsule{}, decerr.New(decerr.KindCapsuleScopeDenied, "CAPSULE_SCOPE_DENIED: scope %q denied for topic %q", scope, topic)
	}

	refs := govmap.Resolve(topic)
	sources := make([]Source, 0, len(refs))
	snippets := make([]string, 0, len(refs))
	for _, ref := range refs {
		path, section := splitAnchor(string(ref))
		sources = append(sources, Source{Path: path, Section: section})

		text, err := resolver.ReadSource(path)
		if err != nil {
			return Capsule{}, fmt.Errorf("capsule: read source %s: %w", path, err)
		}
		if len(text) > MaxSnippetLen {
			text = text[:MaxSnippetLen]
		}
		snippets = append(snippets, text)
	}

	c := Capsule{
		SchemaVersion: schemaVersion,
		Topic:         topic,
		Scope:         scope,
		TaskID:        taskID,
		WorkunitID:    workunitID,
		Sources:       dedupSources(sources),
		Snippets:      snippets,
		Policy:        scope,
	}
	return c.WithRecomputedHash()
}

// WithRecomputedHash zeroes CapsuleHash, computes the canonical hash over
// the remaining fields, and fills it back in. Calling it twice on the same
// input (modulo CapsuleHash) always yields the same hash.
func (c Capsule) WithRecomputedHash() (Capsule, error) {
	c.CapsuleHash = ""
	h, err := canon.HashHex(c)
	if err != nil {
		return Capsule{}, err
	}
	c.CapsuleHash = h
	return c, nil
}

func dedupSources(sources []Source) []Source {
	seen := map[Source]bool{}
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Section < out[j].Section
	})
	return out
}

func splitAnchor(ref string) (path, section string) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '#' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, ""
}

// ArtifactPath returns where a built capsule is persisted under root.
func ArtifactPath(root, capsuleHash string) string {
	return filepath.Join(root, ".decapod", "generated", "artifacts", "capsules", capsuleHash+".json")
}

// Persist writes c to its content-addressed artifact path. The write goes
// through a uniquely-named temp file in the same directory, then an atomic
// rename, so a concurrent reader of ArtifactPath never observes a partial
// write — the same concern the teacher names its ephemeral IDs for
// (internal/browser/session_manager.go's uuid.NewString()), applied here to
// a temp filename instead of a session ID.
func Persist(root string, c Capsule) error {
	path := ArtifactPath(root, c.CapsuleHash)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capsule: mkdir: %w", err)
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("capsule: marshal: %w", err)
	}
	tmp := filepath.Join(dir, c.CapsuleHash+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("capsule: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("capsule: rename: %w", err)
	}
	return nil
}
