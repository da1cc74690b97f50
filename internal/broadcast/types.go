package broadcast

import (
	"context"
	"time"

	"tvbroker/internal/storage"
)

const (
	DefaultListen       = "0.0.0.0:21976"
	DefaultInterval     = 3 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

type Config struct {
	Listen       string
	Interval     time.Duration
	QueueFile    string
	WriteTimeout time.Duration
	// AcceptRate is accepted connections per second; <=0 disables limiting.
	AcceptRate  float64
	AcceptBurst int
}

func (c Config) withDefaults() Config {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = 0
	}
	if c.AcceptBurst <= 0 {
		c.AcceptBurst = 1
	}
	return c
}

// History receives each distributed batch. Failures are logged by the
// monitor and never affect delivery.
type History interface {
	AppendDeliveries(ctx context.Context, ds []storage.Delivery) error
}

// Status is the health view served by the ops endpoint.
type Status struct {
	Sessions       int       `json:"sessions"`
	MonitorRunning bool      `json:"monitor_running"`
	StartedAt      time.Time `json:"started_at"`
	Uptime         string    `json:"uptime"`
	Listen         string    `json:"listen,omitempty"`
}
