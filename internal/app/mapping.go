package app

import (
	"fmt"
	"strings"
	"time"

	"tvbroker/internal/broadcast"
	"tvbroker/internal/config"
	"tvbroker/internal/dirserv"
	"tvbroker/internal/ops"
	"tvbroker/internal/storage"
	"tvbroker/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapBroadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	b := cfg.Broadcast
	interval, err := config.ParseDurationOrDefault("broadcast.interval", b.Interval, config.DefaultInterval)
	if err != nil {
		return broadcast.Config{}, err
	}
	wt, err := config.ParseDurationOrDefault("broadcast.write_timeout", b.WriteTimeout, config.DefaultWriteTimeout)
	if err != nil {
		return broadcast.Config{}, err
	}
	return broadcast.Config{
		Listen:       b.Listen,
		Interval:     interval,
		QueueFile:    b.QueueFile,
		WriteTimeout: wt,
		AcceptRate:   b.AcceptRate,
		AcceptBurst:  b.AcceptBurst,
	}, nil
}

func mapListingConfig(cfg *config.Config) dirserv.Config {
	return dirserv.Config{Listen: cfg.Listing.Listen, Root: cfg.Listing.Root}
}

func mapOpsConfig(cfg *config.Config) ops.Config {
	o := cfg.Ops
	return ops.Config{
		Enabled:       o.Enabled,
		Addr:          o.Addr,
		Metrics:       o.Metrics,
		Pprof:         o.Pprof,
		WebSocketPath: o.WebSocketPath,
		Token:         o.Token,
	}
}

// mapStorageConfig reports enabled=false for the "none" driver.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	h := cfg.History
	driver := strings.ToLower(strings.TrimSpace(h.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(h.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("history.path is required when history.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("history.busy_timeout", h.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown history.driver: %s", h.Driver)
	}
}

func mapRetention(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("history.retention", cfg.History.Retention, config.DefaultRetention)
}
