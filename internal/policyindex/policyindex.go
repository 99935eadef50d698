// Package policyindex loads the context-capsule scope policy from
// .decapod/generated/policy/context_capsule_policy.json, per spec.md §6's
// filesystem layout. It is the concrete backing for capsule.ScopeResolver's
// AllowScope half; ReadSource is served directly from internal/constitution.
package policyindex

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Index is the denylist-shaped policy: a topic maps to the scopes denied
// for it; "*" denies a scope for every topic. Absence from the index means
// allowed, matching spec.md §4.6's "deny the scope" framing (explicit
// denial, not an allowlist).
type Index struct {
	Denied map[string][]string `json:"denied"`
}

// Path returns the generated policy artifact path under root.
func Path(root string) string {
	return filepath.Join(root, ".decapod", "generated", "policy", "context_capsule_policy.json")
}

// Load reads the policy index from root, returning an empty (allow-all)
// Index if the file does not exist.
func Load(root string) (*Index, error) {
	b, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{Denied: map[string][]string{}}, nil
		}
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, err
	}
	if idx.Denied == nil {
		idx.Denied = map[string][]string{}
	}
	return &idx, nil
}

// Save writes the policy index to its generated artifact path.
func (idx *Index) Save(root string) error {
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// AllowScope reports whether scope is permitted for topic: denied if scope
// appears in either the topic-specific or wildcard denylist.
func (idx *Index) AllowScope(topic, scope string) bool {
	if idx == nil {
		return true
	}
	for _, denied := range idx.Denied[topic] {
		if denied == scope {
			return false
		}
	}
	for _, denied := range idx.Denied["*"] {
		if denied == scope {
			return false
		}
	}
	return true
}
