package validate

import (
	"context"

	"decapod/internal/plan"
	"decapod/internal/workunit"
)

// WorkunitGateFunc lets callers supply the actual branch-aware gate; tests
// and cmd/decapod wire workunit.VerifyGateForPublish here.
var WorkunitGateFunc = workunit.VerifyGateForPublish

// PlanGateFunc lets callers supply the active plan's CheckExecute; defaults
// to a no-op so a workspace with no active plan still validates.
var PlanGateFunc = func(ctx context.Context, opts Options) error { return nil }

func workunitPublishGate(ctx context.Context, opts Options) error {
	return WorkunitGateFunc(ctx, opts.Workspace, opts.Branch)
}

func planGate(ctx context.Context, opts Options) error {
	return PlanGateFunc(ctx, opts)
}

// WirePlanGate installs p.CheckExecute as the plan gate.
func WirePlanGate(p plan.Plan) {
	PlanGateFunc = func(ctx context.Context, opts Options) error {
		return p.CheckExecute()
	}
}
