package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/atomize-hq/substrate/internal/substratelog"
	"github.com/google/uuid"
)

const (
	defaultMaxMB  = 100
	defaultKeep   = 3
	defaultSubdir = ".substrate"
	defaultFile   = "trace.jsonl"
)

// output owns the open file handle and buffered writer for one TraceContext.
type output struct {
	file   *os.File
	writer *bufio.Writer
	path   string
}

// TraceContext is a per-process (or per-caller) writer binding. Two distinct
// TraceContext instances MUST NOT share state — no module-global policy id, no
// shared output — so that spans from one context never leak into another's file
// or policy id (spec.md §4.B, §8 "Context isolation").
type TraceContext struct {
	mu       sync.Mutex
	out      *output
	policyID string
}

// Init creates a writer bound to path, or env SHIM_TRACE_LOG, or
// $HOME/.substrate/trace.jsonl, in that precedence order. The parent directory is
// created if missing. If the resolved file already exists at or above the rotation
// threshold, it is rotated before the writer opens it.
func Init(path string) (*TraceContext, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create trace log dir: %w", err)
	}

	tc := &TraceContext{}
	if err := tc.openFresh(resolved); err != nil {
		return nil, err
	}

	if st, err := os.Stat(resolved); err == nil && st.Size() >= maxBytes() {
		if err := tc.rotateLocked(); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if v := os.Getenv("SHIM_TRACE_LOG"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve trace log path: %w", err)
	}
	return filepath.Join(home, defaultSubdir, defaultFile), nil
}

func maxBytes() int64 {
	if v := os.Getenv("TRACE_LOG_MAX_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n * 1024 * 1024
		}
	}
	if v := os.Getenv("SHIM_TRACE_LOG_MAX_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n * 1024 * 1024
		}
	}
	return defaultMaxMB * 1024 * 1024
}

func keepFiles() int {
	if v := os.Getenv("TRACE_LOG_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultKeep
}

func (tc *TraceContext) openFresh(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trace log: %w", err)
	}
	tc.out = &output{file: f, writer: bufio.NewWriter(f), path: path}
	return nil
}

// rotateIfNeeded flushes, checks the current size against the threshold, and
// rotates if it's at or over. Runs before every write (spec.md §4.B).
func (tc *TraceContext) rotateIfNeeded() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.rotateIfNeededLocked()
}

func (tc *TraceContext) rotateIfNeededLocked() error {
	if err := tc.out.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace log: %w", err)
	}
	st, err := tc.out.file.Stat()
	if err != nil {
		return fmt.Errorf("stat trace log: %w", err)
	}
	if st.Size() < maxBytes() {
		return nil
	}
	return tc.rotateLocked()
}

// rotateLocked shifts .jsonl.{keep-1} -> .jsonl.{keep}, down to .jsonl.1, removes
// anything beyond keep, renames the current file to .jsonl.1, and reopens fresh.
// Caller must hold tc.mu.
func (tc *TraceContext) rotateLocked() error {
	path := tc.out.path
	keep := keepFiles()

	if tc.out.file != nil {
		tc.out.writer.Flush()
		tc.out.file.Close()
	}

	// Remove the file beyond retention, if present.
	_ = os.Remove(fmt.Sprintf("%s.%d", path, keep))

	for i := keep - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", path, i)
		to := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(from); err == nil {
			os.Rename(from, to)
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".1"); err != nil {
			return fmt.Errorf("rotate trace log: %w", err)
		}
	}

	return tc.openFresh(path)
}

// SetPolicyID sets the policy id recorded on every subsequently started span.
func (tc *TraceContext) SetPolicyID(id string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.policyID = id
}

// PolicyID returns the currently bound policy id.
func (tc *TraceContext) PolicyID() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.policyID
}

// Append writes a raw JSON value as one line, for non-command events
// (manager_hint, shim_repair, ...).
func (tc *TraceContext) Append(v any) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if err := tc.rotateIfNeededLocked(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal trace event: %w", err)
	}
	return tc.writeLineLocked(data)
}

// writeSpan serializes span with the legacy-compatibility duplicate "command" key
// (spec.md §4.B "Compatibility requirement") and appends it as one line.
func (tc *TraceContext) writeSpan(span Span) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if err := tc.rotateIfNeededLocked(); err != nil {
		return err
	}

	data, err := json.Marshal(span)
	if err != nil {
		return fmt.Errorf("marshal span: %w", err)
	}

	var asMap map[string]any
	if err := json.Unmarshal(data, &asMap); err != nil {
		return fmt.Errorf("re-decode span: %w", err)
	}
	if _, ok := asMap["command"]; !ok {
		asMap["command"] = span.Cmd
	}
	data, err = json.Marshal(asMap)
	if err != nil {
		return fmt.Errorf("marshal span with compat key: %w", err)
	}

	return tc.writeLineLocked(data)
}

// writeLineLocked appends one JSON line, fsyncing if SHIM_FSYNC=1. Caller holds tc.mu.
func (tc *TraceContext) writeLineLocked(data []byte) error {
	if _, err := tc.out.writer.Write(data); err != nil {
		return fmt.Errorf("write trace line: %w", err)
	}
	if _, err := tc.out.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("write trace newline: %w", err)
	}
	if err := tc.out.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace log: %w", err)
	}
	if os.Getenv("SHIM_FSYNC") == "1" {
		if err := tc.out.file.Sync(); err != nil {
			substratelog.Warn("trace: fsync failed", "err", err)
		}
	}
	return nil
}

// LoadSpan performs a linear scan of the trace file for spanID, for replay
// lookups; see LoadSpanFromFile for which record is returned.
func (tc *TraceContext) LoadSpan(spanID string) (*Span, error) {
	tc.mu.Lock()
	path := tc.out.path
	tc.mu.Unlock()
	return LoadSpanFromFile(path, spanID)
}

// LoadSpanFromFile opens path fresh (independent of any live writer) and scans its
// lines for spanID. It returns the span's command_complete record (the one that
// carries replay_context) when present, else the first record matching spanID.
func LoadSpanFromFile(path, spanID string) (*Span, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var first *Span
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var s Span
		if err := json.Unmarshal(line, &s); err != nil {
			continue
		}
		if s.SpanID == spanID {
			if s.EventType == EventCommandComplete {
				return &s, nil
			}
			if first == nil {
				first = &s
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan trace log: %w", err)
	}
	if first != nil {
		return first, nil
	}
	return nil, fmt.Errorf("span %s not found in %s", spanID, path)
}

// newSpanID mirrors the original "spn_" + uuid7 scheme.
func newSpanID() string {
	return "spn_" + uuid.Must(uuid.NewV7()).String()
}

// newSessionID mirrors the original "ses_" + uuid7 scheme.
func newSessionID() string {
	return "ses_" + uuid.Must(uuid.NewV7()).String()
}
