package main

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"decapod/internal/claimhealth"
	"decapod/internal/config"
	"decapod/internal/decerr"
	"decapod/internal/plan"
	"decapod/internal/workunit"
)

func TestRunGovernPlanLifecycle(t *testing.T) {
	newTestApp(t)

	planTitle = "rework the thing"
	t.Cleanup(func() { planTitle = "" })
	require.NoError(t, runGovernPlanInit(newTestCmd(), []string{"PLAN-1"}))

	require.NoError(t, runGovernPlanApprove(newTestCmd(), []string{"PLAN-1"}))

	require.NoError(t, runGovernPlanCheckExecute(newTestCmd(), []string{"PLAN-1"}))

	p, err := plan.Load(app.Workspace, "PLAN-1")
	require.NoError(t, err)
	require.Equal(t, plan.StatusExecuting, p.Status)
}

func TestRunGovernPlanCheckExecuteBlocksUnapprovedRisk(t *testing.T) {
	newTestApp(t)
	app.Cfg.Risk = config.RiskConfig{Zones: []config.RiskZoneConfig{
		{PathPrefix: "prod/", Level: "critical"},
	}}

	planTitle = "drop prod table"
	t.Cleanup(func() { planTitle = "" })
	require.NoError(t, runGovernPlanInit(newTestCmd(), []string{"PLAN-RISK"}))
	require.NoError(t, runGovernPlanApprove(newTestCmd(), []string{"PLAN-RISK"}))

	riskCmd, riskPath = "task.delete", "prod/important.txt"
	t.Cleanup(func() { riskCmd, riskPath = "", "" })

	err := runGovernPlanCheckExecute(newTestCmd(), []string{"PLAN-RISK"})
	require.Error(t, err)
	kind, ok := decerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, decerr.KindRiskUnapproved, kind)

	riskApprover = "alice"
	riskScope = string(plan.ScopeLocal)
	t.Cleanup(func() { riskApprover, riskScope = "", "" })
	require.NoError(t, runGovernPlanApproveRisk(newTestCmd(), []string{"task.delete", "prod/important.txt"}))

	require.NoError(t, runGovernPlanCheckExecute(newTestCmd(), []string{"PLAN-RISK"}))

	p, err := plan.Load(app.Workspace, "PLAN-RISK")
	require.NoError(t, err)
	require.Equal(t, plan.StatusExecuting, p.Status)
}

func TestRunGovernWorkunitLifecycle(t *testing.T) {
	newTestApp(t)

	workunitIntentRef = "specs/INTENT.md#task-1"
	t.Cleanup(func() { workunitIntentRef = "" })
	require.NoError(t, runGovernWorkunitInit(newTestCmd(), []string{"TASK-1"}))

	workunitProofPlan = []string{"interfaces/TESTING.md"}
	t.Cleanup(func() { workunitProofPlan = nil })
	require.NoError(t, runGovernWorkunitSetProofPlan(newTestCmd(), []string{"TASK-1"}))

	m, err := workunit.Load(app.Workspace, "TASK-1")
	require.NoError(t, err)
	require.Len(t, m.ProofPlan, 1)
}

func TestRunGovernCapsuleQueryBuildsAndPersists(t *testing.T) {
	newTestApp(t)

	capsuleTopic = "todo"
	capsuleScope = "plugins/TODO.md"
	t.Cleanup(func() { capsuleTopic, capsuleScope = "", "" })

	require.NoError(t, runGovernCapsuleQuery(newTestCmd(), nil))
}

func TestRunGovernHealthLifecycle(t *testing.T) {
	newTestApp(t)

	healthClaimSubject = "agent-7 can safely auto-merge"
	healthClaimKind = "autonomy"
	healthClaimProvenance = "agent-7"
	t.Cleanup(func() {
		healthClaimSubject, healthClaimKind, healthClaimProvenance = "", "", ""
	})
	require.NoError(t, runGovernHealthAssert(newTestCmd(), []string{"CLAIM-1"}))

	// No proof events yet: ASSERTED.
	var report healthReport
	err := app.WithRead(context.Background(), func(db *sql.DB) error {
		claim, err := claimhealth.LoadClaim(context.Background(), db, "CLAIM-1")
		require.NoError(t, err)
		events, err := claimhealth.LoadProofEvents(context.Background(), db, "CLAIM-1")
		require.NoError(t, err)
		state, msg := claimhealth.ComputeHealth(claim, events, time.Now())
		report = healthReport{Claim: claim, Events: events, State: state, Message: msg}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, claimhealth.Asserted, report.State)

	healthProofSurface = "ci"
	healthProofResult = "pass"
	healthProofSLASeconds = 3600
	t.Cleanup(func() { healthProofSurface, healthProofResult, healthProofSLASeconds = "", "", 0 })
	require.NoError(t, runGovernHealthRecordProof(newTestCmd(), []string{"CLAIM-1"}))

	require.NoError(t, runGovernHealthShow(newTestCmd(), []string{"CLAIM-1"}))
}

func TestRunGovernHealthRecordProofRejectsUnknownClaim(t *testing.T) {
	newTestApp(t)

	healthProofSurface = "ci"
	healthProofResult = "pass"
	t.Cleanup(func() { healthProofSurface, healthProofResult = "", "" })

	err := app.WithWrite(context.Background(), func(db *sql.DB) error {
		return claimhealth.EnsureSchema(context.Background(), db)
	})
	require.NoError(t, err)

	require.Error(t, runGovernHealthRecordProof(newTestCmd(), []string{"CLAIM-MISSING"}))
}
