package config

// Config is the daemon configuration. Durations are Go duration strings
// ("3s", "168h"); empty strings take the documented default.
type Config struct {
	Broadcast BroadcastConfig `json:"broadcast"`
	Listing   ListingConfig   `json:"listing"`
	Logging   LoggingConfig   `json:"logging"`
	Ops       OpsConfig       `json:"ops"`
	History   HistoryConfig   `json:"history"`
}

// BroadcastConfig controls the notification server and its queue file.
//
// Defaults:
//   - listen: "0.0.0.0:21976"
//   - interval: "3s" (monitor drain and session flush period)
//   - queue_file: "tv.queue", lock_file: "tv.queue.lock", log_file: "tv.queue.log"
//   - write_timeout: "10s"
//   - accept_rate: 50 per second, accept_burst: 100
type BroadcastConfig struct {
	Listen       string  `json:"listen,omitempty"`
	Interval     string  `json:"interval,omitempty"`
	QueueFile    string  `json:"queue_file,omitempty"`
	LockFile     string  `json:"lock_file,omitempty"`
	LogFile      string  `json:"log_file,omitempty"`
	WriteTimeout string  `json:"write_timeout,omitempty"`
	AcceptRate   float64 `json:"accept_rate,omitempty"`
	AcceptBurst  int     `json:"accept_burst,omitempty"`
}

// ListingConfig controls the recording directory listing server. It is
// skipped when root does not exist.
type ListingConfig struct {
	Enabled  bool   `json:"enabled"`
	Listen   string `json:"listen,omitempty"`    // default: "0.0.0.0:21977"
	Root     string `json:"root,omitempty"`      // per-player subdirectories of *.ttyrec* files
	LockFile string `json:"lock_file,omitempty"` // default: "dirserv.queue.lock"
	LogFile  string `json:"log_file,omitempty"`  // default: "dirserv.queue.log"
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// OpsConfig controls the optional HTTP endpoint serving health, metrics,
// pprof, history and the WebSocket mirror of the broadcast stream.
//
// Security note:
//   - Prefer binding to localhost.
//   - Token, if set, is required as a bearer token on every route except /healthz.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:21978"
	Metrics       bool   `json:"metrics"`
	Pprof         bool   `json:"pprof"`
	WebSocketPath string `json:"websocket_path,omitempty"` // default: "/tv"; "-" disables
	Token         string `json:"token,omitempty"`          // do not log
}

// HistoryConfig controls the delivery history store.
//
// Example:
//
//	history: { driver: sqlite, path: ./tvbroker.db, retention: 72h }
type HistoryConfig struct {
	Driver        string `json:"driver,omitempty"` // none|file|sqlite
	Path          string `json:"path,omitempty"`
	BusyTimeout   string `json:"busy_timeout,omitempty"`   // sqlite only
	Retention     string `json:"retention,omitempty"`      // default: "168h"
	PruneSchedule string `json:"prune_schedule,omitempty"` // default: "@hourly"
	RecentLimit   int    `json:"recent_limit,omitempty"`   // default: 100
}
