// Package worldroot resolves where a child shell's working-directory cage is
// anchored and builds the shell preamble that enforces it, grounded on
// original_source/crates/shell/src/execution/routing/dispatch.rs's
// wrap_with_anchor_guard and the WorldRootMode precedence described in spec.md
// §4.E.
package worldroot

import (
	"os"
	"path/filepath"
	"strings"
)

// Mode selects how the world root (the directory a caged shell is confined to)
// is computed from the current working directory.
type Mode string

const (
	// FollowCwd means there is no fixed anchor — the world root always equals
	// the current working directory, so caging is a no-op.
	FollowCwd Mode = "follow_cwd"
	// Anchor fixes the world root to a specific path regardless of cwd.
	Anchor Mode = "anchor"
	// Off disables world-root tracking entirely.
	Off Mode = "off"
)

// WorldRoot is the resolved caging configuration for one process.
type WorldRoot struct {
	Mode       Mode
	AnchorPath string // only meaningful when Mode == Anchor
	Caged      bool
}

// AnchorRoot returns the directory a caged child shell must stay within, given
// the process's current working directory.
func (w WorldRoot) AnchorRoot(cwd string) string {
	if w.Mode == Anchor && w.AnchorPath != "" {
		return w.AnchorPath
	}
	return cwd
}

// Options carries the CLI-supplied overrides for ResolveWorldRoot; a nil field
// means "not supplied on the command line".
type Options struct {
	Mode  *Mode
	Path  *string
	Caged *bool
}

// ResolveWorldRoot applies the CLI > env > default precedence chain from
// spec.md §4.E and sets the winning values back onto the process environment
// so child shells observe the identical choice.
func ResolveWorldRoot(opts Options, cwd string) WorldRoot {
	mode := FollowCwd
	path := ""
	caged := false

	if v := os.Getenv("SUBSTRATE_WORLD_ROOT_MODE"); v != "" {
		mode = Mode(strings.ToLower(v))
	}
	if v := os.Getenv("SUBSTRATE_WORLD_ROOT_PATH"); v != "" {
		path = v
	}
	if v := os.Getenv("SUBSTRATE_WORLD_ROOT_CAGED"); v != "" {
		caged = parseBool(v)
	}

	if opts.Mode != nil {
		mode = *opts.Mode
	}
	if opts.Path != nil {
		path = *opts.Path
	}
	if opts.Caged != nil {
		caged = *opts.Caged
	}

	if mode == Anchor && path == "" {
		path = cwd
	}
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	wr := WorldRoot{Mode: mode, AnchorPath: path, Caged: caged}

	os.Setenv("SUBSTRATE_WORLD_ROOT_MODE", string(wr.Mode))
	os.Setenv("SUBSTRATE_WORLD_ROOT_PATH", wr.AnchorPath)
	os.Setenv("SUBSTRATE_WORLD_ROOT_CAGED", boolEnv(wr.Caged))

	return wr
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func boolEnv(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
