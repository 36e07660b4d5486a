// Package plan builds the one LaunchPlan a process runs from: CLI flags, env,
// config, cwd, and stdin TTY-ness resolved per spec.md §4.I's precedence rules.
// Grounded on cmd/wt/main.go's cobra flag wiring for the shape of "CLI args in,
// typed decision out", adapted to Substrate's own mode/world/shim semantics.
package plan

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/atomize-hq/substrate/internal/worldroot"
)

// Mode is the top-level execution mode a LaunchPlan resolves to.
type Mode int

const (
	ModeInteractive Mode = iota
	ModeWrap
	ModeScript
	ModePipe
)

// LaunchPlan is built once per process invocation and threaded through every
// command the dispatcher runs (spec.md §3).
type LaunchPlan struct {
	Mode    Mode
	UsePTY  bool // only meaningful when Mode == ModeInteractive
	WrapCmd string
	ScriptPath string

	SessionID     string
	TraceLogPath  string
	OriginalPath  string
	ShimDir       string
	ShellPath     string

	CIMode         bool
	NoExitOnError  bool
	SkipShims      bool
	NoWorld        bool

	WorldRoot worldroot.WorldRoot

	ManagerInitPath   string
	ManagerEnvPath    string
	BashPreexecPath   string

	ShimmedPath  string // empty means absent
	HostBashEnv  string // empty means absent
}

// CLIFlags carries the subset of command-line flags the planner consults.
// Pointer fields distinguish "not passed" from "passed as false/empty".
type CLIFlags struct {
	Command    *string // -c CMD
	ScriptFile *string // -f SCRIPT
	PTY        *bool
	Shell      *string
	World      *bool
	NoWorld    *bool
	ShimSkip   *bool
	SessionID  *string
	Caged      *bool
	WorldRootMode *string
	WorldRootPath *string
}

// Inputs bundles everything Build needs beyond CLIFlags: values that would
// otherwise come from process globals, injected so the planner stays testable.
type Inputs struct {
	Env      func(string) string
	Cwd      string
	StdinTTY bool
	ConfigWorldEnabled *bool // nil when config doesn't say
	ShimDir      string
	OriginalPath string
}

// Build resolves one LaunchPlan from CLIFlags and Inputs, applying the
// CLI > env > config > default precedence spec.md §4.I names for each field.
func Build(cli CLIFlags, in Inputs) (*LaunchPlan, error) {
	env := in.Env
	if env == nil {
		env = func(string) string { return "" }
	}

	p := &LaunchPlan{
		OriginalPath: in.OriginalPath,
		ShimDir:      in.ShimDir,
	}

	switch {
	case cli.Command != nil:
		p.Mode = ModeWrap
		p.WrapCmd = *cli.Command
	case cli.ScriptFile != nil:
		p.Mode = ModeScript
		p.ScriptPath = *cli.ScriptFile
		if _, err := os.Stat(p.ScriptPath); err != nil {
			return nil, err
		}
	case !in.StdinTTY:
		p.Mode = ModePipe
	default:
		p.Mode = ModeInteractive
		p.UsePTY = boolFlag(cli.PTY, false) && runtime.GOOS != "windows"
	}

	p.ShellPath = resolveShell(cli.Shell, env)

	p.NoWorld = resolveNoWorld(cli, env, in.ConfigWorldEnabled)
	p.SkipShims = boolFlag(cli.ShimSkip, false) || env("SUBSTRATE_NO_SHIMS") != ""

	if p.SkipShims || p.NoWorld {
		p.ShimmedPath = ""
	} else {
		p.ShimmedPath = dedupPath(p.ShimDir, p.OriginalPath)
	}

	if v := env("BASH_ENV"); v != "" {
		p.HostBashEnv = v
	}

	if cli.SessionID != nil && *cli.SessionID != "" {
		p.SessionID = *cli.SessionID
	} else {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		p.SessionID = id.String()
	}

	p.CIMode = env("CI") != ""
	p.NoExitOnError = env("SUBSTRATE_NO_EXIT_ON_ERROR") != ""

	updateWorldEnv(p.NoWorld)

	var wrOpts worldroot.Options
	if cli.WorldRootMode != nil {
		m := worldroot.Mode(*cli.WorldRootMode)
		wrOpts.Mode = &m
	}
	if cli.WorldRootPath != nil {
		wrOpts.Path = cli.WorldRootPath
	}
	if cli.Caged != nil {
		wrOpts.Caged = cli.Caged
	}
	p.WorldRoot = worldroot.ResolveWorldRoot(wrOpts, in.Cwd)

	p.TraceLogPath = env("SHIM_TRACE_LOG")
	if p.TraceLogPath == "" {
		home, _ := os.UserHomeDir()
		p.TraceLogPath = filepath.Join(home, ".substrate", "trace.jsonl")
	}

	home, _ := os.UserHomeDir()
	substrateDir := filepath.Join(home, ".substrate")
	p.ManagerInitPath = filepath.Join(substrateDir, "manager_init.sh")
	p.ManagerEnvPath = filepath.Join(substrateDir, "manager_env.sh")
	p.BashPreexecPath = filepath.Join(substrateDir, "bash-preexec.sh")

	return p, nil
}

func boolFlag(f *bool, def bool) bool {
	if f == nil {
		return def
	}
	return *f
}

func resolveShell(cliShell *string, env func(string) string) string {
	if cliShell != nil && *cliShell != "" {
		return *cliShell
	}
	if v := env("SHELL"); v != "" {
		return v
	}
	if runtime.GOOS == "windows" {
		for _, candidate := range []string{"pwsh.exe", "powershell.exe", "cmd.exe"} {
			if path, err := lookPath(candidate); err == nil {
				return path
			}
		}
		return "cmd.exe"
	}
	return "/bin/sh"
}

func resolveNoWorld(cli CLIFlags, env func(string) string, configWorldEnabled *bool) bool {
	if cli.World != nil && *cli.World {
		return false
	}
	if cli.NoWorld != nil && *cli.NoWorld {
		return true
	}
	if configWorldEnabled != nil && !*configWorldEnabled {
		return true
	}
	if env("SUBSTRATE_WORLD") == "disabled" {
		return true
	}
	if env("SUBSTRATE_WORLD_ENABLED") == "0" {
		return true
	}
	return false
}

func updateWorldEnv(noWorld bool) {
	if noWorld {
		os.Setenv("SUBSTRATE_WORLD", "disabled")
		os.Setenv("SUBSTRATE_WORLD_ENABLED", "0")
	} else {
		os.Setenv("SUBSTRATE_WORLD", "enabled")
		os.Setenv("SUBSTRATE_WORLD_ENABLED", "1")
	}
}

// dedupPath prepends shimDir to originalPath, removing any duplicate entries
// while preserving first-occurrence order, joined with the platform separator.
func dedupPath(shimDir, originalPath string) string {
	sep := string(os.PathListSeparator)
	entries := append([]string{shimDir}, strings.Split(originalPath, sep)...)

	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return strings.Join(out, sep)
}

// lookPath is a thin indirection so tests can stub shell resolution without
// depending on what's actually installed on the test runner's PATH.
var lookPath = exec.LookPath
