package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON lines at Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery is one record handed to the registered sessions in a monitor cycle.
type Delivery struct {
	At        time.Time `json:"at"`
	Timestamp int64     `json:"ts"`
	Payload   string    `json:"payload"`
	Sessions  int       `json:"sessions"`
}
