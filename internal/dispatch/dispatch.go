// Package dispatch implements the single command-execution pipeline every
// Substrate entry point funnels through: redact, gate on world requirements,
// evaluate policy, pick a transport (world PTY, host PTY, built-in, world
// stream, or host shell), and close out the trace span. Grounded on
// internal/egg/server.go's request-handling dispatch (profile lookup →
// sandbox policy → exec) and internal/ws/client.go's ctx-first method
// convention, adapted from egg's single-host-process model to Substrate's
// world/host dual-transport model (spec.md §4.H).
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/atomize-hq/substrate/internal/classify"
	"github.com/atomize-hq/substrate/internal/plan"
	"github.com/atomize-hq/substrate/internal/policy"
	"github.com/atomize-hq/substrate/internal/profile"
	"github.com/atomize-hq/substrate/internal/ptysession"
	"github.com/atomize-hq/substrate/internal/substraterr"
	"github.com/atomize-hq/substrate/internal/substratelog"
	"github.com/atomize-hq/substrate/internal/trace"
	"github.com/atomize-hq/substrate/internal/worldagent"
	"github.com/atomize-hq/substrate/internal/worldroot"
)

// Dispatcher bundles the collaborators execute_command threads a command
// through. World may be nil (no world backend configured for this process);
// every world-reaching branch checks for that before dialing out.
type Dispatcher struct {
	Trace  *trace.TraceContext
	Policy policy.Engine
	World  *worldagent.Client
	Bus    *EventBus
	Env    func(string) string
}

// New builds a Dispatcher. A nil policy engine defaults to
// policy.AllowAllEngine, matching how a process with no configured profile
// rules behaves.
func New(tc *trace.TraceContext, eng policy.Engine, world *worldagent.Client, bus *EventBus, env func(string) string) *Dispatcher {
	if eng == nil {
		eng = policy.AllowAllEngine{}
	}
	if env == nil {
		env = os.Getenv
	}
	return &Dispatcher{Trace: tc, Policy: eng, World: world, Bus: bus, Env: env}
}

// Execute runs one logical command to completion per spec.md §4.H's seven
// steps and returns its portable exit status.
func (d *Dispatcher) Execute(ctx context.Context, p *plan.LaunchPlan, command, cmdID string, childPIDSlot *int32) (ptysession.ExitStatus, error) {
	trimmed := strings.TrimSpace(command)
	redacted := policy.Redact(trimmed, d.Env)

	cwd, err := os.Getwd()
	if err != nil {
		return ptysession.ExitStatus{}, &substraterr.IoError{Where: "getwd", Err: err}
	}

	prof, err := profile.LoadForCwd(cwd)
	if err != nil {
		return ptysession.ExitStatus{}, &substraterr.IoError{Where: "load profile", Err: err}
	}
	os.Setenv("SUBSTRATE_WORLD_FS_MODE", string(prof.WorldFSMode))

	worldEnabled := !p.NoWorld && d.Env("SUBSTRATE_WORLD") != "disabled"

	if prof.WorldFSMode.Requires() && !worldEnabled {
		return ptysession.ExitStatus{}, &substraterr.WorldRequired{
			Reason: fmt.Sprintf("profile requires world_fs_mode=%s but world is disabled", prof.WorldFSMode),
		}
	}

	builder := d.Trace.SpanBuilder().WithCommand(redacted).WithCwd(cwd)

	var decision policy.Decision
	if worldEnabled {
		decision, err = d.Policy.Evaluate(trimmed, cwd, d.Env("SUBSTRATE_AGENT_ID"))
		if err != nil {
			return ptysession.ExitStatus{}, &substraterr.PolicyEvaluationError{Err: err}
		}
		builder = builder.WithPolicyDecision(toRecord(decision))
	}

	span, err := builder.Start()
	if err != nil {
		return ptysession.ExitStatus{}, &substraterr.IoError{Where: "start span", Err: err}
	}

	if worldEnabled && decision.Action == policy.ActionDeny {
		span.Finish(126, nil, nil)
		code := 126
		return ptysession.ExitStatus{Code: &code}, nil
	}

	forced := d.Env("SUBSTRATE_FORCE_PTY") != "" || strings.HasPrefix(trimmed, ":pty ")
	disabled := d.Env("SUBSTRATE_DISABLE_PTY") != ""
	usePTY := forced || (!disabled && classify.NeedsPTY(trimmed, d.Env))

	var caps worldagent.Capabilities
	worldReachable := false
	if worldEnabled && d.World != nil {
		caps, err = worldagent.EnsureReady(ctx, d.World, d.Env)
		worldReachable = err == nil
	}

	if usePTY && worldReachable && caps.SupportsPTY {
		exit, werr := d.runWorldPTY(ctx, p, span, trimmed, cmdID)
		if werr == nil {
			return exit, nil
		}
		if prof.WorldFSMode.Requires() {
			span.Finish(1, nil, nil)
			return ptysession.ExitStatus{}, &substraterr.WorldRequired{Reason: werr.Error()}
		}
		substratelog.Warn("world pty channel failed, falling back to host pty", "err", werr)
	}

	if usePTY {
		exit, rerr := ptysession.ExecuteWithPTY(p, trimmed, cmdID, childPIDSlot)
		if rerr != nil {
			span.Finish(1, nil, nil)
			return ptysession.ExitStatus{}, &substraterr.SpawnError{Cmd: trimmed, Err: rerr}
		}
		span.Finish(exitCodeOf(exit), nil, nil)
		return exit, nil
	}

	if result, ok := TryBuiltin(trimmed, HostEnv()); ok {
		span.Finish(int32(result.ExitCode), nil, nil)
		if result.Output != "" {
			fmt.Fprint(os.Stdout, result.Output)
		}
		code := result.ExitCode
		return ptysession.ExitStatus{Code: &code}, nil
	}

	if worldReachable && caps.SupportsStream {
		exit, werr := d.runWorldStream(ctx, p, span, trimmed, cmdID)
		if werr == nil {
			return exit, nil
		}
		if prof.WorldFSMode.Requires() {
			span.Finish(1, nil, nil)
			return ptysession.ExitStatus{}, &substraterr.WorldRequired{Reason: werr.Error()}
		}
		substratelog.Warn("world stream channel failed, falling back to host shell", "err", werr)
	}

	exit, rerr := d.runHostShell(p, span, trimmed, cmdID)
	if rerr != nil {
		span.Finish(1, nil, nil)
		return ptysession.ExitStatus{}, rerr
	}
	span.Finish(exitCodeOf(exit), nil, nil)
	return exit, nil
}

func toRecord(d policy.Decision) trace.PolicyDecisionRecord {
	restrictions := make([]string, 0, len(d.Restrictions))
	for _, r := range d.Restrictions {
		restrictions = append(restrictions, r.Type+":"+r.Value)
	}
	return trace.PolicyDecisionRecord{
		Action:       string(d.Action),
		Reason:       d.Reason,
		Restrictions: restrictions,
	}
}

func exitCodeOf(e ptysession.ExitStatus) int32 {
	if e.Code != nil {
		return int32(*e.Code)
	}
	if e.Signal != nil {
		return int32(128 + *e.Signal)
	}
	return 0
}

func (d *Dispatcher) runWorldPTY(ctx context.Context, p *plan.LaunchPlan, span *trace.ActiveSpan, command, cmdID string) (ptysession.ExitStatus, error) {
	span.SetTransport(trace.TransportMeta{Mode: "world_pty"})
	cols, rows := ptysession.TerminalSize()
	sess, err := d.World.DialPTY(ctx, worldagent.PTYStartFrame{
		Cmd:    command,
		Cwd:    span.Cwd,
		SpanID: span.SpanID,
		Cols:   cols,
		Rows:   rows,
	})
	if err != nil {
		return ptysession.ExitStatus{}, err
	}
	defer sess.Close()

	exit, err := sess.Run(ctx, os.Stdout)
	if err != nil {
		return ptysession.ExitStatus{}, err
	}
	code := int(exit.Exit)
	span.Finish(exit.Exit, nil, nil)
	return ptysession.ExitStatus{Code: &code}, nil
}

func (d *Dispatcher) runWorldStream(ctx context.Context, p *plan.LaunchPlan, span *trace.ActiveSpan, command, cmdID string) (ptysession.ExitStatus, error) {
	span.SetTransport(trace.TransportMeta{Mode: "world_stream"})
	result, err := d.World.ExecuteStream(ctx, worldagent.StreamRequest{
		Cmd:         command,
		Cwd:         span.Cwd,
		AgentID:     d.Env("SUBSTRATE_AGENT_ID"),
		WorldFSMode: d.Env("SUBSTRATE_WORLD_FS_MODE"),
	}, worldagent.StreamHandler{
		OnStdout: func(b []byte) { os.Stdout.Write(b); d.Bus.publishChunk("stdout", cmdID, b) },
		OnStderr: func(b []byte) { os.Stderr.Write(b); d.Bus.publishChunk("stderr", cmdID, b) },
		OnEvent: func(raw json.RawMessage) {
			d.Bus.Publish(Event{Type: "event", Content: string(raw), Data: map[string]string{"cmd_id": cmdID}})
		},
	})
	if err != nil {
		return ptysession.ExitStatus{}, err
	}
	code := int(result.Exit)
	span.Finish(result.Exit, result.ScopesUsed, result.FsDiff)
	return ptysession.ExitStatus{Code: &code}, nil
}

func (d *Dispatcher) runHostShell(p *plan.LaunchPlan, span *trace.ActiveSpan, command, cmdID string) (ptysession.ExitStatus, error) {
	span.SetTransport(trace.TransportMeta{Mode: "host_shell"})

	effective := command
	if p.CIMode && !p.NoExitOnError {
		effective = ciHardeningPrefix(p.ShellPath) + effective
	}
	if worldroot.NeedsCage(p.WorldRoot, true) {
		effective = worldroot.WrapWithAnchorGuard(effective, p.WorldRoot, span.Cwd)
	}

	args := shellInvocationArgs(p.ShellPath, effective)
	cmd := exec.Command(p.ShellPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Dir = span.Cwd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ptysession.ExitStatus{}, &substraterr.SpawnError{Cmd: command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ptysession.ExitStatus{}, &substraterr.SpawnError{Cmd: command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return ptysession.ExitStatus{}, &substraterr.SpawnError{Cmd: command, Err: err}
	}

	done := make(chan struct{}, 2)
	go streamTo(os.Stdout, stdout, d.Bus, "stdout", cmdID, done)
	go streamTo(os.Stderr, stderr, d.Bus, "stderr", cmdID, done)
	<-done
	<-done

	waitErr := cmd.Wait()
	if waitErr == nil {
		code := 0
		return ptysession.ExitStatus{Code: &code}, nil
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		return ptysession.ExitStatus{Code: &code}, nil
	}
	return ptysession.ExitStatus{}, &substraterr.WaitError{Cmd: command, Err: waitErr}
}

// streamTo copies src to dst while publishing each chunk to bus, flushing as
// it goes (spec.md §4.H: "every step that writes to stdout/stderr must
// flush").
func streamTo(dst io.Writer, src io.Reader, bus *EventBus, kind, cmdID string, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			dst.Write(buf[:n])
			if f, ok := dst.(interface{ Sync() error }); ok {
				f.Sync()
			}
			bus.publishChunk(kind, cmdID, buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// ciHardeningPrefix returns the shell-specific strict-mode prelude applied
// when ci_mode is set and the caller hasn't asked to suppress it.
func ciHardeningPrefix(shellPath string) string {
	base := filepath.Base(shellPath)
	switch {
	case strings.Contains(base, "pwsh"), strings.Contains(base, "powershell"):
		return "$ErrorActionPreference='Stop'; "
	default:
		return "set -euo pipefail; "
	}
}

// shellInvocationArgs picks the -c/-Command flag spelling per shell family.
func shellInvocationArgs(shellPath, command string) []string {
	base := filepath.Base(shellPath)
	switch {
	case strings.Contains(base, "pwsh"), strings.Contains(base, "powershell"):
		return []string{"-Command", command}
	case strings.Contains(base, "cmd"):
		return []string{"/C", command}
	default:
		return []string{"-c", command}
	}
}
