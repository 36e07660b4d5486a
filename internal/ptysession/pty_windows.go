//go:build windows

package ptysession

import "os/exec"

// setSessionLeader is a no-op on Windows; ConPTY handles console ownership
// without a POSIX process-group concept.
func setSessionLeader(cmd *exec.Cmd) {}
