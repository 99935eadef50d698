package policyindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingAllowsEverything(t *testing.T) {
	root := t.TempDir()
	idx, err := Load(root)
	require.NoError(t, err)
	require.True(t, idx.AllowScope("any-topic", "any-scope"))
}

func TestSaveLoadRoundtrip(t *testing.T) {
	root := t.TempDir()
	idx := &Index{Denied: map[string][]string{"secrets": {"private"}}}
	require.NoError(t, idx.Save(root))

	loaded, err := Load(root)
	require.NoError(t, err)
	require.False(t, loaded.AllowScope("secrets", "private"))
	require.True(t, loaded.AllowScope("secrets", "public"))
}

func TestWildcardDenyAppliesToEveryTopic(t *testing.T) {
	idx := &Index{Denied: map[string][]string{"*": {"restricted"}}}
	require.False(t, idx.AllowScope("todo", "restricted"))
	require.False(t, idx.AllowScope("plan", "restricted"))
	require.True(t, idx.AllowScope("todo", "public"))
}
