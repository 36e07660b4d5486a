package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// buildVersion is overridden at link time via -ldflags "-X main.buildVersion=...".
// Version printing itself is ambient CLI plumbing, not dispatcher behavior.
var buildVersion = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the substrate version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("substrate %s (%s/%s, %s)\n", buildVersion, runtime.GOOS, runtime.GOARCH, runtime.Version())
			return nil
		},
	}
}
