package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ApprovalsPath returns the generated-artifact path for the workspace-wide
// approvals ledger, mirroring Plan's own Path/Save/Load convention.
func ApprovalsPath(root string) string {
	return filepath.Join(root, ".decapod", "generated", "approvals.json")
}

// SaveApprovals writes the approvals ledger to its generated-artifact path.
func SaveApprovals(root string, a Approvals) error {
	path := ApprovalsPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("plan: approvals mkdir: %w", err)
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("plan: approvals marshal: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadApprovals reads the approvals ledger, returning an empty Approvals
// (not an error) if none has been recorded yet.
func LoadApprovals(root string) (Approvals, error) {
	b, err := os.ReadFile(ApprovalsPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return Approvals{}, nil
		}
		return Approvals{}, fmt.Errorf("plan: approvals read: %w", err)
	}
	var a Approvals
	if err := json.Unmarshal(b, &a); err != nil {
		return Approvals{}, fmt.Errorf("plan: approvals decode: %w", err)
	}
	return a, nil
}
