package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"decapod/internal/decerr"
)

func TestPlanSaveLoadRoundtrip(t *testing.T) {
	root := t.TempDir()
	p := Init("P1", "ship it")
	p = p.Apply(Update{AddQuestions: []string{"q1"}})
	require.NoError(t, Save(root, p))

	loaded, err := Load(root, "P1")
	require.NoError(t, err)
	require.Equal(t, p.Title, loaded.Title)
	require.Equal(t, p.OpenQuestions, loaded.OpenQuestions)
}

func TestPlanLoadMissingReturnsNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := Load(root, "nope")
	require.Error(t, err)
	kind, ok := decerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, decerr.KindNotFound, kind)
}
