//go:build windows
// +build windows

package proc

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// sysProcAttr starts the child in a new process group so console control
// events aimed at the relay do not reach the engine.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// killTree uses taskkill, which walks the parent/child relation that Windows
// does not expose as a process group.
func killTree(pid int, exited bool) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	out, err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		if exited {
			return nil
		}
		return fmt.Errorf("taskkill %d failed: %w: %s", pid, err, strings.TrimSpace(string(out)))
	}
	return nil
}
