package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// EnvDetached marks the re-executed child so it does not detach again.
const EnvDetached = "TVBROKER_DETACHED"

// Detached reports whether this process is the detached child.
func Detached() bool { return os.Getenv(EnvDetached) == "1" }

// Detach starts a copy of the running executable with args in a new session,
// with stdio on /dev/null, and returns its pid without waiting for it.
func Detach(args ...string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("daemon: locate executable: %w", err)
	}
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), EnvDetached+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("daemon: start %s: %w", exe, err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
