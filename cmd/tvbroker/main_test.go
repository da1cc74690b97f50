package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tvbroker/internal/daemon"
	"tvbroker/internal/queuefile"
	"tvbroker/internal/record"
)

func TestRunUnknownSubcommand(t *testing.T) {
	require.Error(t, run(nil))
	require.Error(t, run([]string{"frobnicate"}))
	require.NoError(t, run([]string{"help"}))
}

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"name=alice", "msg=a=b", "empty="})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"name": "alice", "msg": "a=b", "empty": ""}, fields)

	_, err = parseFields([]string{"oops"})
	require.Error(t, err)
	_, err = parseFields([]string{"=x"})
	require.Error(t, err)
}

func TestAnnounceAppendsRecord(t *testing.T) {
	dir := t.TempDir()
	queue := filepath.Join(dir, "tv.queue")
	cfgPath := filepath.Join(dir, "tvbroker.yaml")
	writeFile(t, cfgPath, "broadcast:\n  queue_file: "+queue+"\n")

	require.NoError(t, run([]string{"announce", "--config", cfgPath, "--no-launch", "--tv", "x2:<10", "name=alice"}))

	lines, err := queuefile.New(queue).Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	rec, err := record.Parse(lines[0])
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"name":           "alice",
		"playback_speed": "2",
		"seekbefore":     "10",
	}, record.DecodeFields(rec.Payload))
}

func TestAnnounceRejectsBadTV(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tvbroker.yaml")
	writeFile(t, cfgPath, "broadcast:\n  queue_file: "+filepath.Join(dir, "tv.queue")+"\n")
	err := run([]string{"announce", "--config", cfgPath, "--no-launch", "--tv", "x20", "name=alice"})
	require.EqualError(t, err, "Playback speed must be between 0.1 and 10")
}

func TestServeExitsWhenLockIsHeld(t *testing.T) {
	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := free.Addr().String()
	require.NoError(t, free.Close())

	dir := t.TempDir()
	lockPath := filepath.Join(dir, "tv.queue.lock")
	cfgPath := filepath.Join(dir, "tvbroker.yaml")
	writeFile(t, cfgPath, fmt.Sprintf(
		"broadcast:\n  listen: %s\n  queue_file: %s\n  lock_file: %s\n  log_file: %s\nlogging:\n  level: error\n",
		addr, filepath.Join(dir, "tv.queue"), lockPath, filepath.Join(dir, "tv.queue.log")))

	held, err := daemon.AcquireLock(lockPath)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	done := make(chan error, 1)
	go func() { done <- run([]string{"serve", "--foreground", "--config", cfgPath}) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running while another instance held the lock")
	}

	if conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		_ = conn.Close()
		t.Fatalf("something is listening on %s", addr)
	}
}

func TestBootstrapDefersToLockHolder(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "tv.queue.lock")
	held, err := daemon.AcquireLock(lockPath)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	lock, ok, err := bootstrap("serve", "unused.yaml", lockPath, "unused.log", true)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, lock)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}
