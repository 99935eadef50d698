package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApprovalsRoundTripsThroughSaveLoad(t *testing.T) {
	root := t.TempDir()

	loaded, err := LoadApprovals(root)
	require.NoError(t, err)
	require.Empty(t, loaded.Rows)

	var approvals Approvals
	approvals.ApproveAction("workunit.delete", "tasks/T1", "alice", ScopeLocal, "2026-07-30T00:00:00Z")
	require.NoError(t, SaveApprovals(root, approvals))

	loaded, err = LoadApprovals(root)
	require.NoError(t, err)
	require.NoError(t, loaded.CheckApproval("workunit.delete", "tasks/T1", ScopeLocal))
	require.Error(t, loaded.CheckApproval("workunit.delete", "tasks/T2", ScopeLocal))
}
