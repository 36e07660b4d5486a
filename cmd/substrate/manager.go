package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/atomize-hq/substrate/internal/manifest"
)

// managerCmd exposes the manager manifest (spec.md §4.A) as a read path: list
// the managers a base+overlay manifest resolves to for this platform.
// Grounded on manifest.Load/ResolveForPlatform directly. Manager doctor state
// is computed (manifest.Doctor) but deliberately has no CLI rendering here —
// health/doctor subcommands for the manifest are an explicit Non-goal
// (spec.md §1); doctor state is exercised by internal/manifest's own tests
// instead.
func managerCmd() *cobra.Command {
	var basePath, overlayPath string

	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Inspect the environment manager manifest",
	}
	cmd.PersistentFlags().StringVar(&basePath, "manifest", defaultManifestPath(), "base manifest path")
	cmd.PersistentFlags().StringVar(&overlayPath, "overlay", defaultOverlayPath(), "overlay manifest path")

	list := &cobra.Command{
		Use:   "list",
		Short: "List managers resolved for this platform, in priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := resolveManagers(basePath, overlayPath)
			if err != nil {
				return err
			}
			for _, s := range specs {
				fmt.Printf("%-12s priority=%-4d %s\n", s.Name, s.Priority, s.Init.Shell)
			}
			return nil
		},
	}

	cmd.AddCommand(list)
	return cmd
}

func resolveManagers(basePath, overlayPath string) ([]manifest.ManagerSpec, error) {
	m, err := manifest.Load(basePath, overlayPath)
	if err != nil {
		return nil, err
	}
	return m.ResolveForPlatform(currentPlatform()), nil
}

func currentPlatform() manifest.Platform {
	switch runtime.GOOS {
	case "darwin":
		return manifest.PlatformMacOS
	case "windows":
		return manifest.PlatformWindows
	default:
		return manifest.PlatformLinux
	}
}

func defaultManifestPath() string {
	if v := os.Getenv("SUBSTRATE_MANIFEST"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".substrate", "managers.yaml")
}

func defaultOverlayPath() string {
	if v := os.Getenv("SUBSTRATE_MANIFEST_OVERLAY"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".substrate", "manager_hooks.local.yaml")
}
