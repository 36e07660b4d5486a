//go:build windows

package ptysession

import (
	"os"
	"os/exec"
)

// notifyWinch is a no-op on Windows; console resize is delivered through
// ConPTY's own resize events rather than a POSIX signal.
func notifyWinch(ch chan os.Signal) {}

// killForegroundGroup is a no-op on Windows; Ctrl-C delivery to a ConPTY
// child is handled by the console subsystem directly.
func killForegroundGroup(pid int, sig os.Signal) {}

// rawWaitStatus on Windows has no signal concept; ExitCode is the whole story.
func rawWaitStatus(exitErr *exec.ExitError) int {
	return exitErr.ExitCode()
}
