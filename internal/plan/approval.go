package plan

import "decapod/internal/decerr"

// Scope isolates approvals: a global approval covers every path for a
// command, a local approval covers exactly one path.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

// Approval records one risk-approval grant.
type Approval struct {
	Cmd        string
	Path       string
	Approver   string
	Scope      Scope
	ApprovedAt string
}

// Approvals is a table of granted approvals, scoped per spec.md §4.7 /
// original_source's policy.rs isolation tests: a global approval for a
// command never leaks into a different command's local approval and vice
// versa. Persisted via Save/Load the same way Plan is, so a grant survives
// past the CLI invocation that recorded it.
type Approvals struct {
	Rows []Approval `json:"rows"`
}

// ApproveAction records a new approval.
func (a *Approvals) ApproveAction(cmd, path, approver string, scope Scope, approvedAt string) {
	a.Rows = append(a.Rows, Approval{Cmd: cmd, Path: path, Approver: approver, Scope: scope, ApprovedAt: approvedAt})
}

// CheckApproval reports whether cmd acting on path is covered: a global
// approval for cmd covers every path; a local approval must match path
// exactly.
func (a *Approvals) CheckApproval(cmd, path string, scope Scope) error {
	for _, row := range a.Rows {
		if row.Cmd != cmd || row.Scope != scope {
			continue
		}
		if scope == ScopeGlobal {
			return nil
		}
		if row.Path == path {
			return nil
		}
	}
	return decerr.New(decerr.KindRiskUnapproved, "RISK_UNAPPROVED: %s on %s (%s) lacks approval", cmd, path, scope)
}
