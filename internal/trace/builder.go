package trace

import (
	"os"
	"strings"
	"time"
)

// SpanBuilder accumulates the fields of a command_start span before it is written.
type SpanBuilder struct {
	ctx            *TraceContext
	sessionID      string
	parentSpan     string
	component      Component
	agentID        string
	worldID        string
	cwd            string
	cmd            string
	policyDecision *PolicyDecisionRecord
	graphEdges     []GraphEdge
}

// SpanBuilder creates a builder seeded from the current process environment:
//   - session_id: env SHIM_SESSION_ID, else a freshly generated "ses_"+uuid7.
//   - agent_id: env SUBSTRATE_AGENT_ID, default "human".
//   - component: "shell" if SUBSTRATE_SHELL is set, else "shim" if SHIM_ORIGINAL_PATH
//     is set, else "unknown".
func (tc *TraceContext) SpanBuilder() *SpanBuilder {
	sessionID := os.Getenv("SHIM_SESSION_ID")
	if sessionID == "" {
		sessionID = newSessionID()
	}

	agentID := os.Getenv("SUBSTRATE_AGENT_ID")
	if agentID == "" {
		agentID = "human"
	}

	component := ComponentUnknown
	if os.Getenv("SUBSTRATE_SHELL") != "" {
		component = ComponentShell
	} else if os.Getenv("SHIM_ORIGINAL_PATH") != "" {
		component = ComponentShim
	}

	return &SpanBuilder{
		ctx:       tc,
		sessionID: sessionID,
		component: component,
		agentID:   agentID,
	}
}

func (b *SpanBuilder) WithCommand(cmd string) *SpanBuilder { b.cmd = cmd; return b }
func (b *SpanBuilder) WithParent(spanID string) *SpanBuilder { b.parentSpan = spanID; return b }
func (b *SpanBuilder) WithWorldID(id string) *SpanBuilder  { b.worldID = id; return b }
func (b *SpanBuilder) WithCwd(cwd string) *SpanBuilder     { b.cwd = cwd; return b }

func (b *SpanBuilder) WithPolicyDecision(d PolicyDecisionRecord) *SpanBuilder {
	b.policyDecision = &d
	return b
}

func (b *SpanBuilder) WithGraphEdge(e GraphEdge) *SpanBuilder {
	b.graphEdges = append(b.graphEdges, e)
	return b
}

// ActiveSpan is the live handle returned by Start, later closed by Finish.
type ActiveSpan struct {
	ctx       *TraceContext
	SpanID    string
	SessionID string
	Command   string
	Cwd       string
	transport *TransportMeta
}

// Start writes the command_start record and returns a handle used to finish it.
func (b *SpanBuilder) Start() (*ActiveSpan, error) {
	spanID := newSpanID()

	span := Span{
		Ts:              time.Now().UTC(),
		EventType:       EventCommandStart,
		SessionID:       b.sessionID,
		SpanID:          spanID,
		ParentSpan:      b.parentSpan,
		Component:       b.component,
		WorldID:         b.worldID,
		PolicyID:        b.ctx.PolicyID(),
		AgentID:         b.agentID,
		Cwd:             b.cwd,
		Cmd:             b.cmd,
		PolicyDecision:  b.policyDecision,
		GraphEdges:      b.graphEdges,
		ExecutionOrigin: OriginHost,
	}

	if err := b.ctx.writeSpan(span); err != nil {
		return nil, err
	}

	return &ActiveSpan{
		ctx:       b.ctx,
		SpanID:    spanID,
		SessionID: b.sessionID,
		Command:   b.cmd,
		Cwd:       b.cwd,
	}, nil
}

// SetTransport records which transport will carry this span's execution; reflected
// on the eventual command_complete record.
func (s *ActiveSpan) SetTransport(t TransportMeta) { s.transport = &t }

// Finish writes the command_complete record pairing this span, attaching a fresh
// replay context and the execution's exit code, scopes, and filesystem diff.
//
// Several env lookups are re-read at finish time rather than reused from start
// time (SHIM_SESSION_ID, SHIM_PARENT_SPAN, SUBSTRATE_WORLD_ID, SUBSTRATE_AGENT_ID,
// SUBSTRATE_SHELL) — matching the original trace writer, since a long-running
// command may see its env mutated by world-state transitions mid-flight.
func (s *ActiveSpan) Finish(exit int32, scopes []string, fsDiff *FsDiff) error {
	sessionID := os.Getenv("SHIM_SESSION_ID")
	if sessionID == "" {
		sessionID = s.SessionID
	}
	parentSpan := os.Getenv("SHIM_PARENT_SPAN")
	worldID := os.Getenv("SUBSTRATE_WORLD_ID")
	agentID := os.Getenv("SUBSTRATE_AGENT_ID")
	if agentID == "" {
		agentID = "human"
	}
	component := ComponentUnknown
	if os.Getenv("SUBSTRATE_SHELL") != "" {
		component = ComponentShell
	} else if os.Getenv("SHIM_ORIGINAL_PATH") != "" {
		component = ComponentShim
	}

	replay, err := buildReplayContext(s.ctx.PolicyID(), s.Cwd)
	if err != nil {
		return err
	}

	origin := OriginHost
	if s.transport != nil && strings.HasPrefix(s.transport.Mode, "world") {
		origin = OriginWorld
	}

	span := Span{
		Ts:             time.Now().UTC(),
		EventType:      EventCommandComplete,
		SessionID:      sessionID,
		SpanID:         s.SpanID,
		ParentSpan:     parentSpan,
		Component:      component,
		WorldID:        worldID,
		PolicyID:       s.ctx.PolicyID(),
		AgentID:        agentID,
		Cwd:            s.Cwd,
		Cmd:            s.Command,
		Exit:           &exit,
		ScopesUsed:     scopes,
		FsDiff:         fsDiff,
		ReplayContext:  replay,
		Transport:      s.transport,
		ExecutionOrigin: origin,
	}

	return s.ctx.writeSpan(span)
}
