// Package plan implements the Plan lifecycle and policy/risk gates of
// spec.md §4.7: draft -> approved -> executing -> closed, gated by open
// questions/unknowns, plus a risk map and scoped approvals table.
package plan

import (
	"decapod/internal/decerr"
)

// Status is a Plan's lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusApproved  Status = "approved"
	StatusExecuting Status = "executing"
	StatusClosed    Status = "closed"
)

// Plan is a unit of governed intent.
type Plan struct {
	ID            string
	Title         string
	Status        Status
	OpenQuestions []string
	OpenUnknowns  []string
}

// Init creates a new draft plan.
func Init(id, title string) Plan {
	return Plan{ID: id, Title: title, Status: StatusDraft}
}

// Approve transitions draft -> approved. Approval succeeds even while open
// questions or unknowns remain; CheckExecute is what enforces them.
func (p Plan) Approve() (Plan, error) {
	if p.Status != StatusDraft {
		return p, decerr.New(decerr.KindInvalidArgument, "plan %s is not draft", p.ID)
	}
	p.Status = StatusApproved
	return p, nil
}

// Update mutates a plan's open-question/open-unknown lists.
type Update struct {
	ClearQuestions bool
	ClearUnknowns  bool
	AddQuestions   []string
	AddUnknowns    []string
}

// Apply applies an Update to a plan.
func (p Plan) Apply(u Update) Plan {
	if u.ClearQuestions {
		p.OpenQuestions = nil
	}
	if u.ClearUnknowns {
		p.OpenUnknowns = nil
	}
	p.OpenQuestions = append(p.OpenQuestions, u.AddQuestions...)
	p.OpenUnknowns = append(p.OpenUnknowns, u.AddUnknowns...)
	return p
}

// CheckExecute fails with decerr.KindNeedsHumanInput while either open list
// is non-empty, per spec.md §4.7 / scenario S4.
func (p Plan) CheckExecute() error {
	if len(p.OpenQuestions) > 0 || len(p.OpenUnknowns) > 0 {
		return decerr.New(decerr.KindNeedsHumanInput, "NEEDS_HUMAN_INPUT: plan %s has unresolved questions or unknowns", p.ID)
	}
	return nil
}

// Execute transitions approved -> executing, subject to CheckExecute.
func (p Plan) Execute() (Plan, error) {
	if p.Status != StatusApproved {
		return p, decerr.New(decerr.KindInvalidArgument, "plan %s is not approved", p.ID)
	}
	if err := p.CheckExecute(); err != nil {
		return p, err
	}
	p.Status = StatusExecuting
	return p, nil
}

// Close transitions executing -> closed.
func (p Plan) Close() (Plan, error) {
	if p.Status != StatusExecuting {
		return p, decerr.New(decerr.KindInvalidArgument, "plan %s is not executing", p.ID)
	}
	p.Status = StatusClosed
	return p, nil
}
