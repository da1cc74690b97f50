package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"tvbroker/pkg/logx"
)

const (
	DefaultBroadcastListen = "0.0.0.0:21976"
	DefaultInterval        = 3 * time.Second
	DefaultQueueFile       = "tv.queue"
	DefaultLockFile        = "tv.queue.lock"
	DefaultLogFile         = "tv.queue.log"
	DefaultWriteTimeout    = 10 * time.Second
	DefaultAcceptRate      = 50
	DefaultAcceptBurst     = 100

	DefaultListingListen   = "0.0.0.0:21977"
	DefaultListingLockFile = "dirserv.queue.lock"
	DefaultListingLogFile  = "dirserv.queue.log"

	DefaultOpsAddr       = "127.0.0.1:21978"
	DefaultWebSocketPath = "/tv"

	DefaultRetention     = 168 * time.Hour
	DefaultPruneSchedule = "@hourly"
	DefaultRecentLimit   = 100
)

// Defaults is the configuration used when no config file exists.
func Defaults() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields in place.
func (c *Config) ApplyDefaults() {
	b := &c.Broadcast
	b.Listen = orDefault(b.Listen, DefaultBroadcastListen)
	b.Interval = orDefault(b.Interval, DefaultInterval.String())
	b.QueueFile = orDefault(b.QueueFile, DefaultQueueFile)
	b.LockFile = orDefault(b.LockFile, DefaultLockFile)
	b.LogFile = orDefault(b.LogFile, DefaultLogFile)
	b.WriteTimeout = orDefault(b.WriteTimeout, DefaultWriteTimeout.String())
	if b.AcceptRate == 0 {
		b.AcceptRate = DefaultAcceptRate
	}
	if b.AcceptBurst == 0 {
		b.AcceptBurst = DefaultAcceptBurst
	}

	l := &c.Listing
	l.Listen = orDefault(l.Listen, DefaultListingListen)
	l.LockFile = orDefault(l.LockFile, DefaultListingLockFile)
	l.LogFile = orDefault(l.LogFile, DefaultListingLogFile)

	c.Logging.Level = orDefault(c.Logging.Level, "info")

	c.Ops.Addr = orDefault(c.Ops.Addr, DefaultOpsAddr)
	c.Ops.WebSocketPath = orDefault(c.Ops.WebSocketPath, DefaultWebSocketPath)

	h := &c.History
	h.Driver = orDefault(strings.ToLower(h.Driver), "none")
	h.Retention = orDefault(h.Retention, DefaultRetention.String())
	h.PruneSchedule = orDefault(h.PruneSchedule, DefaultPruneSchedule)
	if h.RecentLimit <= 0 {
		h.RecentLimit = DefaultRecentLimit
	}
}

// Validate checks field syntax. It does not touch the filesystem.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(checkAddr("broadcast.listen", c.Broadcast.Listen))
	_, err := parsePositive("broadcast.interval", c.Broadcast.Interval)
	add(err)
	_, err = ParseDurationField("broadcast.write_timeout", c.Broadcast.WriteTimeout)
	add(err)
	if c.Broadcast.AcceptRate < 0 {
		add(errors.New("broadcast.accept_rate: must be >= 0"))
	}
	if c.Broadcast.AcceptBurst < 0 {
		add(errors.New("broadcast.accept_burst: must be >= 0"))
	}
	if strings.TrimSpace(c.Broadcast.QueueFile) == "" {
		add(errors.New("broadcast.queue_file: required"))
	}

	if c.Listing.Enabled {
		add(checkAddr("listing.listen", c.Listing.Listen))
		if strings.TrimSpace(c.Listing.Root) == "" {
			add(errors.New("listing.root: required when listing is enabled"))
		}
	}

	if !logx.ValidLevel(c.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	if c.Ops.Enabled {
		add(checkAddr("ops.addr", c.Ops.Addr))
		if p := c.Ops.WebSocketPath; p != "-" && !strings.HasPrefix(p, "/") {
			add(fmt.Errorf("ops.websocket_path: must start with / (or be \"-\"), got %q", p))
		}
	}

	switch c.History.Driver {
	case "none", "":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.History.Path) == "" {
			add(fmt.Errorf("history.path: required for driver %q", c.History.Driver))
		}
	default:
		add(fmt.Errorf("history.driver: unknown driver %q", c.History.Driver))
	}
	_, err = ParseDurationField("history.busy_timeout", c.History.BusyTimeout)
	add(err)
	_, err = ParseDurationField("history.retention", c.History.Retention)
	add(err)

	return errors.Join(errs...)
}

func checkAddr(path, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: invalid address %q: %w", path, addr, err)
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
