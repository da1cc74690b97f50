package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tvbroker/pkg/logx"
)

// fileStore appends deliveries to a JSON Lines file. Prune rewrites the file
// through a temp file and rename.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
	f  *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("history.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, f: f}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendDeliveries(ctx context.Context, ds []Delivery) error {
	_ = ctx
	if len(ds) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	w := bufio.NewWriter(s.f)
	enc := json.NewEncoder(w)
	for _, d := range ds {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (s *fileStore) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, ErrClosed
	}

	// Keep a ring of the last `limit` entries while scanning forward.
	ring := make([]Delivery, 0, limit)
	next := 0
	err := s.scanLocked(ctx, func(d Delivery) {
		if len(ring) < limit {
			ring = append(ring, d)
			return
		}
		ring[next] = d
		next = (next + 1) % limit
	})
	if err != nil {
		return nil, err
	}

	out := make([]Delivery, 0, len(ring))
	for i := 0; i < len(ring); i++ {
		idx := (next - 1 - i + 2*len(ring)) % len(ring)
		out = append(out, ring[idx])
	}
	return out, nil
}

func (s *fileStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, ErrClosed
	}

	tmp := s.path + ".tmp"
	tf, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(tf)
	enc := json.NewEncoder(w)
	removed := 0
	var encErr error
	err = s.scanLocked(ctx, func(d Delivery) {
		if encErr != nil {
			return
		}
		if d.At.Before(cutoff) {
			removed++
			return
		}
		encErr = enc.Encode(d)
	})
	if err == nil {
		err = encErr
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := tf.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if removed == 0 {
		_ = os.Remove(tmp)
		return 0, nil
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return 0, err
	}
	_ = s.f.Close()
	f, err := openAppend(s.path)
	if err != nil {
		s.f = nil
		return removed, fmt.Errorf("reopen history file: %w", err)
	}
	s.f = f
	return removed, nil
}

func (s *fileStore) scanLocked(ctx context.Context, fn func(Delivery)) error {
	rf, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer rf.Close()

	br := bufio.NewReader(rf)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, rerr := br.ReadBytes('\n')
		if len(line) > 0 {
			var d Delivery
			if err := json.Unmarshal(line, &d); err != nil {
				s.log.Debug("skipping bad history line", logx.Err(err))
			} else {
				fn(d)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
