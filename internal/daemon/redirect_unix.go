//go:build unix && !linux

package daemon

import "golang.org/x/sys/unix"

func redirectStdio(fd int) error {
	if err := unix.Dup2(fd, 1); err != nil {
		return err
	}
	return unix.Dup2(fd, 2)
}
