package worldroot

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// NeedsCage reports whether command should be wrapped with the anchor guard:
// caged, an actual anchor in effect (mode != FollowCwd), POSIX only, and the
// command is about to run through a shell (dispatch decides the last part and
// passes it in as usesShell).
func NeedsCage(w WorldRoot, usesShell bool) bool {
	return w.Caged && w.Mode != FollowCwd && runtime.GOOS != "windows" && usesShell
}

// WrapWithAnchorGuard prepends a POSIX shell preamble that confines any `cd`
// the child performs to stay within the resolved anchor root: it defines a
// cd() shell function delegating to `command cd`, checks `pwd -P` afterward,
// and snaps back to the anchor (with a stderr warning) on escape. The guard
// lives entirely inside the child shell process — it adds no supervising
// process and cannot be bypassed by a subshell's own cd calls.
func WrapWithAnchorGuard(command string, w WorldRoot, cwd string) string {
	anchor := canonicalizeOr(w.AnchorRoot(cwd))
	escaped := shellEscape(anchor)

	preamble := fmt.Sprintf(
		`__substrate_anchor_root=%s; substrate_anchor_cd() { command cd "$@" || return $?; dest=$(pwd -P); case "$dest" in "$__substrate_anchor_root"|"$__substrate_anchor_root"/*) ;; *) printf 'substrate: info: caged root guard: returning to %%s\n' "$__substrate_anchor_root" >&2; command cd "$__substrate_anchor_root" || return $?;; esac; unset dest; }; cd() { substrate_anchor_cd "$@"; }; substrate_anchor_cd .; `,
		escaped,
	)
	return preamble + command
}

func canonicalizeOr(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if abs, aerr := filepath.Abs(path); aerr == nil {
			return abs
		}
		return path
	}
	return resolved
}

// shellEscape wraps path in single quotes, escaping any embedded single quote
// the POSIX way: close the quote, emit an escaped quote, reopen the quote.
func shellEscape(path string) string {
	if path == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
