// Package trace implements the append-only rotating JSONL span writer: one record
// pair (command_start, command_complete) per logical command, plus replay context
// and manager-hint events. Every TraceContext is independent — never a hidden
// process-global (spec.md §4.B, §9 "Global state → scoped context").
package trace

import "time"

// EventType enumerates the kinds of record a span/event line can carry.
type EventType string

const (
	EventCommandStart    EventType = "command_start"
	EventCommandComplete EventType = "command_complete"
	EventBuiltinCommand  EventType = "builtin_command"
	EventShimRepair      EventType = "shim_repair"
	EventPTYSessionStart EventType = "pty_session_start"
	EventPTYSessionEnd   EventType = "pty_session_end"
	EventManagerHint     EventType = "manager_hint"
)

// Component identifies which part of the system emitted a span.
type Component string

const (
	ComponentShell   Component = "shell"
	ComponentShim    Component = "shim"
	ComponentUnknown Component = "unknown"
)

// ExecutionOrigin records whether a command ran on the host or inside world.
type ExecutionOrigin string

const (
	OriginHost  ExecutionOrigin = "host"
	OriginWorld ExecutionOrigin = "world"
)

// EdgeType enumerates the kinds of causal relationship a GraphEdge can express.
// Supplemented from original_source/crates/trace/src/lib.rs — spec.md's distilled
// Span model omits graph edges, but nothing in its Non-goals excludes them.
type EdgeType string

const (
	EdgeParentChild EdgeType = "parent_child"
	EdgeDataFlow    EdgeType = "data_flow"
	EdgeCausedBy    EdgeType = "caused_by"
	EdgeDependsOn   EdgeType = "depends_on"
	EdgeTriggers    EdgeType = "triggers"
)

// GraphEdge records a causal relationship between two spans.
type GraphEdge struct {
	EdgeType EdgeType       `json:"edge_type"`
	FromSpan string         `json:"from_span"`
	ToSpan   string         `json:"to_span"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TransportMeta describes which transport carried a command's execution.
type TransportMeta struct {
	Mode             string `json:"mode"`
	Endpoint         string `json:"endpoint,omitempty"`
	SocketActivation bool   `json:"socket_activation,omitempty"`
}

// PolicyDecisionRecord is the span's copy of the policy engine's verdict.
type PolicyDecisionRecord struct {
	Action       string   `json:"action"`
	Reason       string   `json:"reason,omitempty"`
	Restrictions []string `json:"restrictions,omitempty"`
}

// FsDiff summarizes filesystem changes observed by the world backend. Paths are
// recorded exactly as the backend reports them — no host-side normalization.
type FsDiff struct {
	Writes      []string          `json:"writes,omitempty"`
	Mods        []string          `json:"mods,omitempty"`
	Deletes     []string          `json:"deletes,omitempty"`
	Truncated   bool              `json:"truncated"`
	TreeHash    string            `json:"tree_hash,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	DisplayPath map[string]string `json:"display_path,omitempty"`
}

// ReplayContext snapshots the environmental inputs of a completed command.
type ReplayContext struct {
	Path               string `json:"path,omitempty"`
	EnvHash            string `json:"env_hash"`
	Umask              uint32 `json:"umask"`
	Locale             string `json:"locale,omitempty"`
	Cwd                string `json:"cwd"`
	PolicyID           string `json:"policy_id"`
	PolicyCommit       string `json:"policy_commit,omitempty"`
	WorldImageVersion  string `json:"world_image_version"`
}

// Span is one logical-command record, emitted twice (start then complete) sharing
// one SpanID.
type Span struct {
	Ts             time.Time             `json:"ts"`
	EventType      EventType             `json:"event_type"`
	SessionID      string                `json:"session_id"`
	SpanID         string                `json:"span_id"`
	ParentSpan     string                `json:"parent_span,omitempty"`
	Component      Component             `json:"component"`
	WorldID        string                `json:"world_id,omitempty"`
	PolicyID       string                `json:"policy_id"`
	AgentID        string                `json:"agent_id"`
	Cwd            string                `json:"cwd"`
	Cmd            string                `json:"cmd"`
	Exit           *int32                `json:"exit,omitempty"`
	ScopesUsed     []string              `json:"scopes_used,omitempty"`
	FsDiff         *FsDiff               `json:"fs_diff,omitempty"`
	ReplayContext  *ReplayContext        `json:"replay_context,omitempty"`
	Transport      *TransportMeta        `json:"transport,omitempty"`
	PolicyDecision *PolicyDecisionRecord `json:"policy_decision,omitempty"`
	ExecutionOrigin ExecutionOrigin      `json:"execution_origin"`
	GraphEdges     []GraphEdge           `json:"graph_edges,omitempty"`

	// External interface fields (spec.md §6). SpanBuilder.Start and
	// ActiveSpan.Finish do not set them, so mode/host/shell/build/ppid are
	// omitted from written records and isatty_*/pty are always false.
	Mode     string `json:"mode,omitempty"`
	Host     string `json:"host,omitempty"`
	Shell    string `json:"shell,omitempty"`
	IsattyIn bool   `json:"isatty_stdin"`
	IsattyOut bool  `json:"isatty_stdout"`
	IsattyErr bool  `json:"isatty_stderr"`
	Pty      bool   `json:"pty"`
	Build    string `json:"build,omitempty"`
	Ppid     int64  `json:"ppid,omitempty"`
}
