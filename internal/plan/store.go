package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"decapod/internal/decerr"
)

// Path returns the generated-artifact path for a plan under root.
func Path(root, id string) string {
	return filepath.Join(root, ".decapod", "generated", "plans", id+".json")
}

// Save writes the plan to its generated-artifact path.
func Save(root string, p Plan) error {
	path := Path(root, p.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("plan: mkdir: %w", err)
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("plan: marshal: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// Load reads a plan from its generated-artifact path.
func Load(root, id string) (Plan, error) {
	path := Path(root, id)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Plan{}, decerr.New(decerr.KindNotFound, "plan %s not found", id)
		}
		return Plan{}, fmt.Errorf("plan: read: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(b, &p); err != nil {
		return Plan{}, fmt.Errorf("plan: decode: %w", err)
	}
	return p, nil
}
