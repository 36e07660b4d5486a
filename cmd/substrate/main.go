// Command substrate is the shell-wrapper entry point: it resolves one
// LaunchPlan from CLI flags, env, and stdin TTY-ness, then runs the
// requested command(s) through the dispatcher. Grounded on cmd/wt/main.go's
// cobra root-command-plus-subcommand wiring, adapted from wingthing's
// task-submission root to substrate's direct command-execution root
// (spec.md §4.H, §4.I).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/atomize-hq/substrate/internal/dispatch"
	"github.com/atomize-hq/substrate/internal/plan"
	"github.com/atomize-hq/substrate/internal/policy"
	"github.com/atomize-hq/substrate/internal/ptysession"
	"github.com/atomize-hq/substrate/internal/substratelog"
	"github.com/atomize-hq/substrate/internal/trace"
	"github.com/atomize-hq/substrate/internal/worldagent"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "substrate:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		commandFlag    string
		scriptFlag     string
		shellFlag      string
		ptyFlag        bool
		worldFlag      bool
		noWorldFlag    bool
		shimSkipFlag   bool
		sessionIDFlag  string
		cagedFlag      bool
		worldRootMode  string
		worldRootPath  string
		logLevelFlag   string
	)

	root := &cobra.Command{
		Use:   "substrate [flags]",
		Short: "substrate — policy-aware, traced command execution shell wrapper",
		Long:  "Runs commands through a world-aware dispatcher: policy evaluation, PTY allocation, and an append-only trace log of every command's inputs and outcome.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := substratelog.Init(logLevelFlag, ""); err != nil {
				return err
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			cli := plan.CLIFlags{}
			if commandFlag != "" {
				cli.Command = &commandFlag
			}
			if scriptFlag != "" {
				cli.ScriptFile = &scriptFlag
			}
			if cmd.Flags().Changed("pty") {
				cli.PTY = &ptyFlag
			}
			if shellFlag != "" {
				cli.Shell = &shellFlag
			}
			if cmd.Flags().Changed("world") {
				cli.World = &worldFlag
			}
			if cmd.Flags().Changed("no-world") {
				cli.NoWorld = &noWorldFlag
			}
			if cmd.Flags().Changed("shim-skip") {
				cli.ShimSkip = &shimSkipFlag
			}
			if sessionIDFlag != "" {
				cli.SessionID = &sessionIDFlag
			}
			if cmd.Flags().Changed("caged") {
				cli.Caged = &cagedFlag
			}
			if worldRootMode != "" {
				cli.WorldRootMode = &worldRootMode
			}
			if worldRootPath != "" {
				cli.WorldRootPath = &worldRootPath
			}

			home, _ := os.UserHomeDir()
			shimDir := os.Getenv("SUBSTRATE_SHIM_DIR")
			if shimDir == "" && home != "" {
				shimDir = filepath.Join(home, ".substrate", "shims")
			}

			in := plan.Inputs{
				Env:          os.Getenv,
				Cwd:          cwd,
				StdinTTY:     term.IsTerminal(int(os.Stdin.Fd())),
				ShimDir:      shimDir,
				OriginalPath: os.Getenv("PATH"),
			}

			p, err := plan.Build(cli, in)
			if err != nil {
				return err
			}

			tc, err := trace.Init(p.TraceLogPath)
			if err != nil {
				return fmt.Errorf("init trace log: %w", err)
			}

			var world *worldagent.Client
			if !p.NoWorld {
				sock := worldagent.DefaultSocketPath(os.Getenv)
				world = worldagent.NewClient(worldagent.KindUnixSocket, sock)
				if secret := os.Getenv("SUBSTRATE_WORLD_TOKEN"); secret != "" {
					world.SetBearerToken(worldagent.DeriveSessionToken(secret, p.SessionID))
				}
			}

			d := dispatch.New(tc, policy.AllowAllEngine{}, world, dispatch.NewEventBus(), os.Getenv)
			return runPlan(cmd.Context(), d, p)
		},
	}

	root.Flags().StringVarP(&commandFlag, "command", "c", "", "run CMD and exit")
	root.Flags().StringVarP(&scriptFlag, "file", "f", "", "run the script at SCRIPT and exit")
	root.Flags().BoolVar(&ptyFlag, "pty", false, "prefer a PTY for interactive mode")
	root.Flags().StringVar(&shellFlag, "shell", "", "shell to run commands with")
	root.Flags().BoolVar(&worldFlag, "world", false, "force-enable the world backend")
	root.Flags().BoolVar(&noWorldFlag, "no-world", false, "disable the world backend")
	root.Flags().BoolVar(&shimSkipFlag, "shim-skip", false, "do not prepend the shim directory to PATH")
	root.Flags().StringVar(&sessionIDFlag, "session-id", "", "reuse an existing session id")
	root.Flags().BoolVar(&cagedFlag, "caged", false, "confine child shells to the resolved world root")
	root.Flags().StringVar(&worldRootMode, "world-root-mode", "", "follow_cwd|anchor|off")
	root.Flags().StringVar(&worldRootPath, "world-root-path", "", "anchor path when world-root-mode=anchor")
	root.Flags().StringVar(&logLevelFlag, "log-level", "warn", "debug|info|warn|error")

	root.AddCommand(versionCmd(), doctorCmd(), statusCmd(), deployCmd(), traceCmd(), managerCmd())
	return root
}

// runPlan executes p.Mode's one-shot or looping command source through d.
func runPlan(ctx context.Context, d *dispatch.Dispatcher, p *plan.LaunchPlan) error {
	switch p.Mode {
	case plan.ModeWrap:
		return runOne(ctx, d, p, p.WrapCmd)
	case plan.ModeScript:
		data, err := os.ReadFile(p.ScriptPath)
		if err != nil {
			return err
		}
		return runOne(ctx, d, p, string(data))
	case plan.ModePipe:
		return runLines(ctx, d, p, os.Stdin)
	default: // ModeInteractive
		return runREPL(ctx, d, p)
	}
}

func runOne(ctx context.Context, d *dispatch.Dispatcher, p *plan.LaunchPlan, command string) error {
	cmdID := "cmd_" + p.SessionID
	exit, err := d.Execute(ctx, p, command, cmdID, nil)
	if err != nil {
		return err
	}
	os.Exit(exitProcessCode(exit))
	return nil
}

func runLines(ctx context.Context, d *dispatch.Dispatcher, p *plan.LaunchPlan, in *os.File) error {
	scanner := bufio.NewScanner(in)
	last := 0
	n := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		n++
		cmdID := fmt.Sprintf("cmd_%s_%d", p.SessionID, n)
		exit, err := d.Execute(ctx, p, line, cmdID, nil)
		if err != nil {
			substratelog.Warn("piped command failed", "line", line, "err", err)
			last = 1
			continue
		}
		last = exitProcessCode(exit)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	os.Exit(last)
	return nil
}

func runREPL(ctx context.Context, d *dispatch.Dispatcher, p *plan.LaunchPlan) error {
	scanner := bufio.NewScanner(os.Stdin)
	n := 0
	for {
		fmt.Fprint(os.Stderr, "substrate> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		n++
		cmdID := fmt.Sprintf("cmd_%s_%d", p.SessionID, n)
		if _, err := d.Execute(ctx, p, line, cmdID, nil); err != nil {
			fmt.Fprintln(os.Stderr, "substrate:", err)
		}
	}
	return scanner.Err()
}

func exitProcessCode(e ptysession.ExitStatus) int {
	if e.Code != nil {
		return *e.Code
	}
	if e.Signal != nil {
		return 128 + *e.Signal
	}
	return 0
}
