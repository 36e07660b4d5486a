package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// deployCmd exists only as the recognized early-exit subcommand name
// spec.md §4.I's planner reserves; shim binary deployment and package
// install recipes are an explicit Non-goal (spec.md §1), so this does not
// lay down files — it points at where a real deployment subsystem would
// plug in.
func deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Shim binary deployment (not implemented here)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("substrate deploy: shim binary deployment is handled by a separate subsystem")
			return nil
		},
	}
}
