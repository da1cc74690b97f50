package daemon

import (
	"fmt"
	"os"
)

// RedirectOutput truncates the log file at path, points fds 1 and 2 at it and
// closes stdin. The returned file must stay open for the process lifetime.
func RedirectOutput(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("daemon: open log %s: %w", path, err)
	}
	if err := redirectStdio(int(f.Fd())); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("daemon: redirect to %s: %w", path, err)
	}
	_ = os.Stdin.Close()
	return f, nil
}
