package ptysession

import (
	"os"
	"sync"
	"sync/atomic"
)

// active holds the single live PTY manager, if any. IsPTYActive and
// forwardInterrupt read it to tell whether Ctrl-C belongs to the PTY's child
// (the child owns the controlling TTY) or to the host REPL. This package
// installs no signal handler that calls them.
var (
	activeMu  sync.Mutex
	active    *Manager
	activeSet int32 // atomic flag mirroring "active != nil", read without locking
)

// SetActive registers (or clears, with nil) the PTY manager signal handlers
// should route interrupts to. Only one PTY session is ever active at a time.
func SetActive(m *Manager) {
	activeMu.Lock()
	active = m
	activeMu.Unlock()
	if m != nil {
		atomic.StoreInt32(&activeSet, 1)
	} else {
		atomic.StoreInt32(&activeSet, 0)
	}
}

// IsPTYActive reports whether a PTY session currently owns the terminal —
// the cheap check a host signal handler makes before deciding where Ctrl-C
// goes.
func IsPTYActive() bool {
	return atomic.LoadInt32(&activeSet) == 1
}

func getActive() *Manager {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active
}

// forwardInterrupt delivers sig to the active PTY's child process group.
// When no PTY is active it is a no-op. Nothing in the module calls it; no
// SIGINT/SIGTERM handler is installed.
func forwardInterrupt(sig os.Signal) {
	m := getActive()
	if m == nil || m.pid == 0 {
		return
	}
	killForegroundGroup(m.pid, sig)
}
