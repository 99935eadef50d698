package govmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveExactMatch(t *testing.T) {
	docs := Resolve("todo.claim")
	require.Equal(t, []DocRef{"plugins/TODO.md#claims-and-exclusive-mode", "interfaces/CLAIMS.md"}, docs)
}

func TestResolvePrefixMatch(t *testing.T) {
	docs := Resolve("todo.unknown-subop")
	require.Equal(t, []DocRef{"plugins/TODO.md"}, docs)
}

func TestResolveFallback(t *testing.T) {
	docs := Resolve("totally.unknown.op")
	require.Equal(t, fallback, docs)
}

func TestAgentInitAlwaysResolves(t *testing.T) {
	docs := Resolve("agent.init")
	require.NotEmpty(t, docs)
}
