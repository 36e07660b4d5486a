// Package ptysession owns host-side PTY allocation and shuttling: sizing the
// pty to the controlling terminal, spawning the child shell inside it, and
// copying bytes until the child exits. Grounded on internal/egg/server.go's
// pty.StartWithSize/pty.Setsize usage and cmd/wt/egg.go's terminal-size /
// raw-mode / SIGWINCH client loop, adapted from egg's gRPC-session model to a
// direct in-process PTY (spec.md §4.G).
package ptysession

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/atomize-hq/substrate/internal/plan"
)

// ExitStatus is the portable translation of a raw OS wait status, per
// spec.md §4.G step 8: raw > 128 → signal, else → exit code.
type ExitStatus struct {
	Code   *int
	Signal *int
}

func (e ExitStatus) Success() bool {
	return e.Code != nil && *e.Code == 0
}

func translateExit(raw int) ExitStatus {
	if raw > 128 {
		sig := raw - 128
		return ExitStatus{Signal: &sig}
	}
	code := raw
	return ExitStatus{Code: &code}
}

type controlMsg struct {
	resize *pty.Winsize
	write  []byte
	close  bool
}

// Manager owns one pty master for its lifetime and is the only goroutine that
// writes to or resizes it, per spec.md §9's "avoid cyclic state" note: the
// stdin reader and the SIGWINCH handler talk to it only through ctl. The
// output copier in ExecuteWithPTY reads the master directly, and
// ExecuteWithPTY closes it once the child has exited.
type Manager struct {
	ptmx *os.File
	pid  int
	ctl  chan controlMsg
	done chan struct{}
}

// ExecuteWithPTY implements spec.md §4.G's execute_with_pty: allocate a pty
// sized to the controlling terminal, spawn shellPath -c command inside it,
// shuttle stdin/stdout until exit, and restore terminal state on every exit
// path. childPIDSlot, if non-nil, receives the spawned pid so signal handlers
// elsewhere in the process can target it.
func ExecuteWithPTY(p *plan.LaunchPlan, command string, cmdID string, childPIDSlot *int32) (ExitStatus, error) {
	cols, rows := TerminalSize()

	stdinFD := int(os.Stdin.Fd())
	var oldState *term.State
	if term.IsTerminal(stdinFD) {
		var err error
		oldState, err = term.MakeRaw(stdinFD)
		if err != nil {
			oldState = nil
		}
	}
	restore := func() {
		if oldState != nil {
			term.Restore(stdinFD, oldState)
		}
	}
	defer restore()

	command = strings.TrimPrefix(command, ":pty ")
	cmd := exec.Command(p.ShellPath, "-c", command)
	cmd.Env = buildChildEnv(p, cmdID)
	setSessionLeader(cmd)

	size := &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return ExitStatus{}, fmt.Errorf("start pty: %w", err)
	}

	if childPIDSlot != nil && cmd.Process != nil {
		*childPIDSlot = int32(cmd.Process.Pid)
	}

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	mgr := &Manager{ptmx: ptmx, pid: pid, ctl: make(chan controlMsg, 16), done: make(chan struct{})}
	SetActive(mgr)
	defer SetActive(nil)

	go mgr.run()

	stdinDone := make(chan struct{})
	go func() {
		defer close(stdinDone)
		buf := make([]byte, 4096)
		for {
			n, rerr := os.Stdin.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case mgr.ctl <- controlMsg{write: data}:
				case <-mgr.done:
					return
				}
			}
			if rerr != nil {
				return
			}
		}
	}()

	winch := make(chan os.Signal, 1)
	notifyWinch(winch)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			c, r := TerminalSize()
			select {
			case mgr.ctl <- controlMsg{resize: &pty.Winsize{Cols: uint16(c), Rows: uint16(r)}}:
			case <-mgr.done:
				return
			}
		}
	}()

	copyDone := make(chan error, 1)
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, rerr := ptmx.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if rerr != nil {
				copyDone <- rerr
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	close(mgr.done)
	mgr.ctl <- controlMsg{close: true}
	<-copyDone
	ptmx.Close()

	if childPIDSlot != nil {
		*childPIDSlot = 0
	}

	raw := 0
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return ExitStatus{}, fmt.Errorf("wait for command: %w", waitErr)
		}
		raw = rawWaitStatus(exitErr)
	}
	return translateExit(raw), nil
}

func (m *Manager) run() {
	for msg := range m.ctl {
		switch {
		case msg.close:
			return
		case msg.resize != nil:
			pty.Setsize(m.ptmx, msg.resize)
		case msg.write != nil:
			m.ptmx.Write(msg.write)
		}
	}
}

// TerminalSize reports the controlling terminal's size, falling back to
// COLUMNS/LINES env and finally a fixed default (spec.md §4.G step 1). World
// PTY sessions use this too, so the host and world channels agree on sizing.
func TerminalSize() (cols, rows int) {
	cols, rows = 120, 50
	for _, fd := range []int{int(os.Stdin.Fd()), int(os.Stdout.Fd()), int(os.Stderr.Fd())} {
		if w, h, err := term.GetSize(fd); err == nil {
			return w, h
		}
	}
	if v := os.Getenv("COLUMNS"); v != "" {
		fmt.Sscanf(v, "%d", &cols)
	}
	if v := os.Getenv("LINES"); v != "" {
		fmt.Sscanf(v, "%d", &rows)
	}
	return cols, rows
}

// buildChildEnv applies spec.md §4.G step 4's environment rules: set session
// correlation vars, clear shim re-entry guards so nested shims re-activate,
// and default TERM.
func buildChildEnv(p *plan.LaunchPlan, cmdID string) []string {
	env := os.Environ()
	out := make([]string, 0, len(env)+4)
	hasTerm := false

	for _, kv := range env {
		switch {
		case strings.HasPrefix(kv, "SHIM_ACTIVE="),
			strings.HasPrefix(kv, "SHIM_CALLER="),
			strings.HasPrefix(kv, "SHIM_CALL_STACK="):
			continue
		case strings.HasPrefix(kv, "TERM="):
			hasTerm = true
			out = append(out, kv)
		default:
			out = append(out, kv)
		}
	}
	if !hasTerm {
		out = append(out, "TERM=xterm-256color")
	}

	out = append(out,
		"SHIM_SESSION_ID="+p.SessionID,
		"SHIM_TRACE_LOG="+p.TraceLogPath,
		"SHIM_PARENT_CMD_ID="+cmdID,
	)
	return out
}
