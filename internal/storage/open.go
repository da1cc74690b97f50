package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"tvbroker/pkg/logx"
)

// Store is the history API used by the broadcast monitor and the ops server.
type Store interface {
	AppendDeliveries(ctx context.Context, ds []Delivery) error
	// Recent returns at most limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Delivery, error)
	// Prune removes entries delivered before cutoff and reports how many went.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
