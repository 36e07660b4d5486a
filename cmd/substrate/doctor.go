package main

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/atomize-hq/substrate/internal/worldagent"
)

// doctorCmd reports what substrate can actually reach on this host: which
// of the shells it knows how to drive are on PATH, and whether a world agent
// is listening on the default socket. Grounded on cmd/wt/doctor.go's reachability-checklist shape
// (CLI tools / services / config), adapted from wingthing's agent-CLI
// checklist to substrate's shell/world checklist.
func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check shell resolution and world agent reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("substrate doctor")
			fmt.Println()

			fmt.Println("Shells found on PATH:")
			for _, name := range []string{"bash", "zsh", "sh", "pwsh", "powershell", "cmd"} {
				if path, err := exec.LookPath(name); err == nil {
					fmt.Printf("  %-12s %s\n", name, path)
				} else {
					fmt.Printf("  %-12s not found\n", name)
				}
			}
			fmt.Println()

			fmt.Println("World agent:")
			sock := worldagent.DefaultSocketPath(nil)
			client := worldagent.NewClient(worldagent.KindUnixSocket, sock)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			caps, err := worldagent.EnsureReady(ctx, client, nil)
			if err != nil {
				fmt.Printf("  socket %-40s unreachable: %v\n", sock, err)
			} else {
				fmt.Printf("  socket %-40s reachable, version=%s pty=%v stream=%v\n",
					sock, caps.Version, caps.SupportsPTY, caps.SupportsStream)
			}

			return nil
		},
	}
}
