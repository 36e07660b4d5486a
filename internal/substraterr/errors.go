// Package substraterr defines the semantic error kinds named in the error handling
// design: typed values so call sites can errors.As instead of string-matching, each
// wrapping the offending path/entry/command for context.
package substraterr

import "fmt"

// ManifestParseError wraps a YAML/structural failure loading a manifest file.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("parse manifest %s: %v", e.Path, e.Err)
}
func (e *ManifestParseError) Unwrap() error { return e.Err }

// ManifestVersionMismatch is returned when an overlay's version differs from the base.
type ManifestVersionMismatch struct {
	Base    uint32
	Overlay uint32
}

func (e *ManifestVersionMismatch) Error() string {
	return fmt.Sprintf("overlay version %d does not match base version %d", e.Overlay, e.Base)
}

// DuplicateManager is returned when the same manager name appears twice in one file.
type DuplicateManager struct {
	Name   string
	Origin string
}

func (e *DuplicateManager) Error() string {
	return fmt.Sprintf("duplicate manager entry %q in %s", e.Name, e.Origin)
}

// InvalidRegex is returned when an errors[] pattern fails to compile.
type InvalidRegex struct {
	Manager string
	Pattern string
	Err     error
}

func (e *InvalidRegex) Error() string {
	return fmt.Sprintf("manager %q has invalid regex %q: %v", e.Manager, e.Pattern, e.Err)
}
func (e *InvalidRegex) Unwrap() error { return e.Err }

// PolicyDeny is not an I/O error; it surfaces as exit 126 and a policy_decision span field.
type PolicyDeny struct {
	Reason string
}

func (e *PolicyDeny) Error() string { return fmt.Sprintf("denied: %s", e.Reason) }

// PolicyEvaluationError is fatal for the current command only; it has no span side effect.
type PolicyEvaluationError struct {
	Err error
}

func (e *PolicyEvaluationError) Error() string { return fmt.Sprintf("policy evaluation: %v", e.Err) }
func (e *PolicyEvaluationError) Unwrap() error { return e.Err }

// WorldRequired is fatal when the effective world_fs_mode demands world access but the
// world backend is unreachable or disabled. It never falls back silently.
type WorldRequired struct {
	Reason string
}

func (e *WorldRequired) Error() string { return fmt.Sprintf("world required: %s", e.Reason) }

// WorldTransportError is non-fatal when world_fs_mode is Writable (the caller should
// warn once and fall back to the host path); it is fatal under any stricter mode.
type WorldTransportError struct {
	Err error
}

func (e *WorldTransportError) Error() string { return fmt.Sprintf("world transport: %v", e.Err) }
func (e *WorldTransportError) Unwrap() error { return e.Err }

// IoError wraps a filesystem/process I/O failure with the step where it happened (Where).
type IoError struct {
	Where string
	Err   error
}

func (e *IoError) Error() string { return fmt.Sprintf("io error (%s): %v", e.Where, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// SpawnError wraps a failure to start a child process.
type SpawnError struct {
	Cmd string
	Err error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn %q: %v", e.Cmd, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// WaitError wraps a failure waiting on a child process.
type WaitError struct {
	Cmd string
	Err error
}

func (e *WaitError) Error() string { return fmt.Sprintf("wait %q: %v", e.Cmd, e.Err) }
func (e *WaitError) Unwrap() error { return e.Err }

// TerminalRestoreFailure is logged at warn and never fails the command itself.
type TerminalRestoreFailure struct {
	Err error
}

func (e *TerminalRestoreFailure) Error() string {
	return fmt.Sprintf("terminal restore failed: %v", e.Err)
}
func (e *TerminalRestoreFailure) Unwrap() error { return e.Err }
