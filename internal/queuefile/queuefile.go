// Package queuefile implements the on-disk mailbox between producers and the
// broadcast daemon. Producers append lines; the daemon periodically drains the
// whole file. Both sides take an exclusive advisory lock on the file itself, so
// a line is either delivered by exactly one drain or still in the file.
package queuefile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"tvbroker/internal/record"
)

const lockPollInterval = 10 * time.Millisecond

// Queue is a handle on a queue file path. It holds no open descriptor between
// calls and is safe for concurrent use.
type Queue struct {
	path string
}

func New(path string) *Queue {
	return &Queue{path: path}
}

func (q *Queue) Path() string { return q.path }

// Append writes one record as a single newline-terminated line while holding
// the exclusive lock. The file is created if it does not exist.
func (q *Queue) Append(ctx context.Context, r record.Record) error {
	return q.AppendLine(ctx, r.String())
}

// AppendLine appends a raw line. A trailing newline is added when missing.
func (q *Queue) AppendLine(ctx context.Context, line string) error {
	if err := ensureDir(q.path); err != nil {
		return err
	}
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("queuefile: open %s: %w", q.path, err)
	}
	defer f.Close()

	if err := lockExclusive(ctx, f); err != nil {
		return err
	}
	defer unlock(f)

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("queuefile: append %s: %w", q.path, err)
	}
	return nil
}

// Drain returns every line currently in the file, in file order with newlines
// stripped, and truncates the file to zero length, all under one exclusive
// lock. A missing file drains as empty and is not created.
func (q *Queue) Drain(ctx context.Context) ([]string, error) {
	f, err := os.OpenFile(q.path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("queuefile: open %s: %w", q.path, err)
	}
	defer f.Close()

	if err := lockExclusive(ctx, f); err != nil {
		return nil, err
	}
	defer unlock(f)

	lines, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("queuefile: read %s: %w", q.path, err)
	}
	if err := f.Truncate(0); err != nil {
		return nil, fmt.Errorf("queuefile: truncate %s: %w", q.path, err)
	}
	return lines, nil
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			out = append(out, strings.TrimSuffix(line, "\n"))
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// lockExclusive blocks until the exclusive flock is held or ctx ends.
func lockExclusive(ctx context.Context, f *os.File) error {
	fd := int(f.Fd())
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("queuefile: lock %s: %w", f.Name(), err)
		}
		t := time.NewTimer(lockPollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("queuefile: mkdir %s: %w", dir, err)
	}
	return nil
}
