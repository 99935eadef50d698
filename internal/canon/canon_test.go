package canon

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	Name string   `json:"name"`
	Tags []string `json:"tags" canon:"set"`
	B    int      `json:"b"`
	A    int      `json:"a"`
}

func TestBytesSortsObjectKeys(t *testing.T) {
	b, err := Bytes(fixture{Name: "x", A: 1, B: 2})
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2,"name":"x","tags":null}`, string(b))
}

func TestBytesSortsAndDedupsSetFields(t *testing.T) {
	f := fixture{Tags: []string{"b", "a", "b", "c"}}
	b, err := Bytes(f)
	require.NoError(t, err)

	var g fixture
	g.Tags = []string{"c", "a", "b"}
	b2, err := Bytes(g)
	require.NoError(t, err)
	require.Equal(t, string(b), string(b2))
}

func TestBytesDeterministic(t *testing.T) {
	f := fixture{Name: "repeat", Tags: []string{"z", "a"}, A: 3, B: 4}
	first, err := Bytes(f)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Bytes(f)
		require.NoError(t, err)
		if diff := cmp.Diff(string(first), string(again)); diff != "" {
			t.Fatalf("non-deterministic encoding (-first +again):\n%s", diff)
		}
	}
}

func TestHashHexStable(t *testing.T) {
	f := fixture{Name: "hash-me", Tags: []string{"one"}, A: 1, B: 2}
	h1, err := HashHex(f)
	require.NoError(t, err)
	h2, err := HashHex(f)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
}
