package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"decapod/internal/decerr"
)

func TestApproveSucceedsWithOpenQuestions(t *testing.T) {
	p := Init("P1", "ship it")
	p = p.Apply(Update{AddQuestions: []string{"who owns rollback?"}})
	p, err := p.Approve()
	require.NoError(t, err)
	require.Equal(t, StatusApproved, p.Status)
}

func TestCheckExecuteNeedsHumanInput(t *testing.T) {
	p := Init("P1", "ship it")
	p = p.Apply(Update{AddQuestions: []string{"q1"}})
	p, _ = p.Approve()

	_, err := p.Execute()
	require.Error(t, err)
	kind, ok := decerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, decerr.KindNeedsHumanInput, kind)
}

func TestCheckExecutePassesOnceCleared(t *testing.T) {
	p := Init("P1", "ship it")
	p = p.Apply(Update{AddQuestions: []string{"q1"}})
	p, _ = p.Approve()
	p = p.Apply(Update{ClearQuestions: true})

	p, err := p.Execute()
	require.NoError(t, err)
	require.Equal(t, StatusExecuting, p.Status)
}

func TestEvalRiskZoneBeatsCommandClass(t *testing.T) {
	rm := RiskMap{Zones: []RiskZone{
		{PathPrefix: "prod/", LevelValue: LevelCritical, Rules: []string{"prod-zone"}},
	}}
	level, rules := EvalRisk("task.delete", "prod/important.txt", rm)
	require.Equal(t, LevelCritical, level)
	require.Equal(t, []string{"prod-zone"}, rules)
}

func TestEvalRiskFallsBackToCommandClass(t *testing.T) {
	level, _ := EvalRisk("task.delete", "sandbox/file.txt", RiskMap{})
	require.Equal(t, LevelHigh, level)
}

func TestApprovalsScopeIsolation(t *testing.T) {
	var approvals Approvals
	approvals.ApproveAction("task.delete", "a.txt", "alice", ScopeLocal, "now")

	require.NoError(t, approvals.CheckApproval("task.delete", "a.txt", ScopeLocal))
	require.Error(t, approvals.CheckApproval("task.delete", "b.txt", ScopeLocal))
	require.Error(t, approvals.CheckApproval("task.delete", "a.txt", ScopeGlobal))
}
