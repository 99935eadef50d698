package capsule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	allowed map[string]bool
	docs    map[string]string
}

func (f fakeResolver) AllowScope(topic, scope string) bool {
	return f.allowed[topic+"|"+scope]
}

func (f fakeResolver) ReadSource(path string) (string, error) {
	return f.docs[path], nil
}

func TestBuildDeniesScope(t *testing.T) {
	r := fakeResolver{allowed: map[string]bool{}}
	_, err := Build(context.Background(), r, "todo.add", "local", "T_1", "")
	require.Error(t, err)
}

func TestBuildDeterministicWithDuplicateSources(t *testing.T) {
	r := fakeResolver{
		allowed: map[string]bool{"todo.add|local": true},
		docs:    map[string]string{"plugins/TODO.md": "todo rules", "specs/INTENT.md": "intent rules"},
	}

	c1, err := Build(context.Background(), r, "todo.add", "local", "T_1", "")
	require.NoError(t, err)
	c2, err := Build(context.Background(), r, "todo.add", "local", "T_1", "")
	require.NoError(t, err)
	require.Equal(t, c1.CapsuleHash, c2.CapsuleHash)
}

func TestWithRecomputedHashIdempotent(t *testing.T) {
	r := fakeResolver{
		allowed: map[string]bool{"todo|local": true},
		docs:    map[string]string{"plugins/TODO.md": "todo rules"},
	}
	c, err := Build(context.Background(), r, "todo", "local", "", "")
	require.NoError(t, err)

	again, err := c.WithRecomputedHash()
	require.NoError(t, err)
	require.Equal(t, c.CapsuleHash, again.CapsuleHash)
}
