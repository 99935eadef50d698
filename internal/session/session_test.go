package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"decapod/internal/decerr"
)

func TestAcquireIsIdempotentPerWorktree(t *testing.T) {
	root := t.TempDir()
	s1, err := Acquire(root, "agent-1")
	require.NoError(t, err)
	require.NotEmpty(t, s1.Password)

	s2, err := Acquire(root, "agent-1")
	require.NoError(t, err)
	require.Equal(t, s1.Password, s2.Password)
}

func TestInterlockDeniesDirtyProtectedBranch(t *testing.T) {
	err := Interlock("main", true, nil)
	require.Error(t, err)
	kind, ok := decerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, decerr.KindWorkspaceInterlockDirtyProtected, kind)
}

func TestInterlockAllowsCleanProtectedBranch(t *testing.T) {
	require.NoError(t, Interlock("main", false, nil))
}

func TestInterlockAllowsDirtyFeatureBranch(t *testing.T) {
	require.NoError(t, Interlock("feature/x", true, nil))
}
