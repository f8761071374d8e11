//go:build !windows
// +build !windows

package proc

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr puts the child in a new process group led by itself, so the
// whole tree can be signalled through the negative pid.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killTree sends SIGKILL to the process group. A group with no members left
// is not an error.
func killTree(pid int, exited bool) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to kill process group %d: %w", pid, err)
	}
	return nil
}
