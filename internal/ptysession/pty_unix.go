//go:build unix

package ptysession

import (
	"os/exec"
	"syscall"
)

// setSessionLeader makes the child its own session/process-group leader so it
// becomes the controlling-TTY owner of the pty and so forwardInterrupt's
// negative-pid kill reaches the whole foreground group (spec.md §4.G step 4).
func setSessionLeader(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
