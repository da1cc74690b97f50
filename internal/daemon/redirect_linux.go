//go:build linux

package daemon

import "golang.org/x/sys/unix"

func redirectStdio(fd int) error {
	if err := unix.Dup3(fd, 1, 0); err != nil {
		return err
	}
	return unix.Dup3(fd, 2, 0)
}
