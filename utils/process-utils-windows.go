//go:build windows

package utils

import (
	"os/exec"
)

// ConfigureDetachedProcAttr is a no-op on Windows, process groups work differently.
func ConfigureDetachedProcAttr(cmd *exec.Cmd) {
}

// KillProcessGroup kills the process started by cmd.
func KillProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
