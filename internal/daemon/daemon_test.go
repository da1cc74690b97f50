package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecondLockFailsWithAlreadyRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tv.queue.lock")

	first, err := AcquireLock(path)
	require.NoError(t, err)

	_, err = AcquireLock(path)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, first.Release())
	again, err := AcquireLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestLockTruncatesSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "dirserv.queue.lock")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale pid"), 0o644))

	l, err := AcquireLock(path)
	require.NoError(t, err)
	defer l.Release()

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, st.Size())
	require.Equal(t, path, l.Path())
}

func TestDetachedMarker(t *testing.T) {
	t.Setenv(EnvDetached, "")
	require.False(t, Detached())
	t.Setenv(EnvDetached, "1")
	require.True(t, Detached())
}

func TestReleaseNilIsSafe(t *testing.T) {
	var l *Lock
	require.NoError(t, l.Release())
}
