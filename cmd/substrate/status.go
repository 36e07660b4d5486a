package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atomize-hq/substrate/internal/plan"
)

// statusCmd prints the LaunchPlan substrate would build for the current
// shell environment, without running anything — useful for confirming why a
// command would or wouldn't reach the world backend.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the launch plan substrate would build right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			p, err := plan.Build(plan.CLIFlags{}, plan.Inputs{
				Env:      os.Getenv,
				Cwd:      cwd,
				StdinTTY: true,
			})
			if err != nil {
				return err
			}

			fmt.Printf("session_id:     %s\n", p.SessionID)
			fmt.Printf("shell:          %s\n", p.ShellPath)
			fmt.Printf("world enabled:  %v\n", !p.NoWorld)
			fmt.Printf("skip shims:     %v\n", p.SkipShims)
			fmt.Printf("world root:     mode=%s caged=%v\n", p.WorldRoot.Mode, p.WorldRoot.Caged)
			fmt.Printf("trace log:      %s\n", p.TraceLogPath)
			return nil
		},
	}
}
