package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewConfigManager(filepath.Join(t.TempDir(), "tvbroker.yaml"))
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:21976", cfg.Broadcast.Listen)
	require.Equal(t, "3s", cfg.Broadcast.Interval)
	require.Equal(t, "tv.queue", cfg.Broadcast.QueueFile)
	require.Equal(t, "tv.queue.lock", cfg.Broadcast.LockFile)
	require.Equal(t, "tv.queue.log", cfg.Broadcast.LogFile)
	require.Equal(t, "0.0.0.0:21977", cfg.Listing.Listen)
	require.Equal(t, "dirserv.queue.lock", cfg.Listing.LockFile)
	require.Equal(t, "none", cfg.History.Driver)
	require.Same(t, cfg, m.Get())
}

func TestParseYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tvbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broadcast:
  listen: 127.0.0.1:9000
  interval: 1s
  queue_file: /var/games/tv.queue
logging:
  level: debug
history:
  driver: sqlite
  path: /var/games/history.db
  retention: 24h
`), 0o644))

	cfg, err := NewConfigManager(path).Parse()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Broadcast.Listen)
	require.Equal(t, "1s", cfg.Broadcast.Interval)
	require.Equal(t, "/var/games/tv.queue", cfg.Broadcast.QueueFile)
	require.Equal(t, "tv.queue.lock", cfg.Broadcast.LockFile)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "sqlite", cfg.History.Driver)
	require.Equal(t, "@hourly", cfg.History.PruneSchedule)
	require.Equal(t, 100, cfg.History.RecentLimit)
}

func TestParseJSONAndEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tvbroker.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ops":{"enabled":true,"metrics":true}}`), 0o644))
	cfg, err := NewConfigManager(path).Parse()
	require.NoError(t, err)
	require.True(t, cfg.Ops.Enabled)
	require.Equal(t, "127.0.0.1:21978", cfg.Ops.Addr)
	require.Equal(t, "/tv", cfg.Ops.WebSocketPath)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	cfg, err = NewConfigManager(empty).Parse()
	require.NoError(t, err)
	require.Equal(t, "3s", cfg.Broadcast.Interval)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":      "broadcast:\n  lisen: x\n",
		"bad interval":       "broadcast:\n  interval: soon\n",
		"zero interval":      "broadcast:\n  interval: 0s\n",
		"bad listen":         "broadcast:\n  listen: nope\n",
		"bad level":          "logging:\n  level: loud\n",
		"bad driver":         "history:\n  driver: redis\n",
		"driver no path":     "history:\n  driver: file\n",
		"listing no root":    "listing:\n  enabled: true\n",
		"bad ws path":        "ops:\n  enabled: true\n  websocket_path: tv\n",
		"negative retention": "history:\n  retention: -1h\n",
	}
	dir := t.TempDir()
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := NewConfigManager(path).Parse()
			require.Error(t, err)
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	a := Defaults()
	b := Defaults()
	changed, _ := SummarizeConfigChange(a, b)
	require.Empty(t, changed)

	b.Logging.Level = "debug"
	b.Ops.Token = "secret"
	b.Broadcast.Interval = "5s"
	changed, attrs := SummarizeConfigChange(a, b)
	require.Equal(t, []string{"broadcast", "logging", "ops"}, changed)
	require.NotEmpty(t, attrs)
	require.Equal(t, []string{"broadcast"}, RestartRequired(changed))
}

func TestWatchPublishesValidatedChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tvbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	rejectWarn := func(ctx context.Context, cfg *Config) error {
		if cfg.Logging.Level == "warn" {
			return context.Canceled
		}
		return nil
	}
	m.SetValidator(rejectWarn)
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// give the watcher a moment to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))
	time.Sleep(600 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))

	select {
	case cfg := <-sub:
		require.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	require.Equal(t, "debug", m.Get().Logging.Level)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", time.Second)
	require.NoError(t, err)
	require.Equal(t, time.Second, d)
	d, err = ParseDurationOrDefault("x", "250ms", time.Second)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)
	_, err = ParseDurationOrDefault("x", "-1s", time.Second)
	require.Error(t, err)
}

func TestDecodeSniffsFormat(t *testing.T) {
	cfg, err := Decode("tvbroker.conf", []byte(`{"broadcast":{"interval":"2s"}}`))
	require.NoError(t, err)
	require.Equal(t, "2s", cfg.Broadcast.Interval)

	cfg, err = Decode("tvbroker.conf", []byte("broadcast:\n  interval: 4s\n"))
	require.NoError(t, err)
	require.Equal(t, "4s", cfg.Broadcast.Interval)

	cfg, err = Decode("tvbroker.yaml", []byte("# only comments\n"))
	require.NoError(t, err)
	require.Equal(t, "3s", cfg.Broadcast.Interval)
}
