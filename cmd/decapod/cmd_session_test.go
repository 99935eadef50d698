package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"decapod/internal/session"
)

func TestRunSessionAcquireIsIdempotent(t *testing.T) {
	ws := newTestApp(t)

	require.NoError(t, runSessionAcquire(newTestCmd(), nil))

	path := session.Path(ws)
	_, err := os.Stat(path)
	require.NoError(t, err)

	first, err := session.Acquire(ws, app.Actor)
	require.NoError(t, err)

	require.NoError(t, runSessionAcquire(newTestCmd(), nil))
	second, err := session.Acquire(ws, app.Actor)
	require.NoError(t, err)

	require.Equal(t, first.Password, second.Password)
}
