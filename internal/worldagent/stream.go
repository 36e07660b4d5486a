package worldagent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/atomize-hq/substrate/internal/trace"
)

// StreamRequest is the body of POST /v1/execute/stream (spec.md §4.F).
type StreamRequest struct {
	Profile      string            `json:"profile,omitempty"`
	Cmd          string            `json:"cmd"`
	Cwd          string            `json:"cwd,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	PTY          bool              `json:"pty"`
	AgentID      string            `json:"agent_id"`
	Budget       int64             `json:"budget,omitempty"`
	WorldFSMode  string            `json:"world_fs_mode,omitempty"`
}

// Frame is one newline-delimited JSON object from the stream response.
type Frame struct {
	Type       string           `json:"type"`
	SpanID     string           `json:"span_id,omitempty"`
	ChunkB64   string           `json:"chunk_b64,omitempty"`
	Event      json.RawMessage  `json:"event,omitempty"`
	Exit       *int32           `json:"exit,omitempty"`
	ScopesUsed []string         `json:"scopes_used,omitempty"`
	FsDiff     *trace.FsDiff    `json:"fs_diff,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// StreamResult is the outcome of ExecuteStream.
type StreamResult struct {
	SpanID     string
	Exit       int32
	ScopesUsed []string
	FsDiff     *trace.FsDiff
}

// StreamHandler receives decoded stdout/stderr bytes and structured events as
// they arrive, before ExecuteStream returns.
type StreamHandler struct {
	OnStdout func([]byte)
	OnStderr func([]byte)
	OnEvent  func(json.RawMessage)
}

// ExecuteStream posts req to /v1/execute/stream and processes the NDJSON
// frame stream until an exit or error frame arrives. stdout/stderr chunks are
// forwarded to h as they're decoded — never buffered in full, since a command
// may run indefinitely.
func (c *Client) ExecuteStream(ctx context.Context, req StreamRequest, h StreamHandler) (StreamResult, error) {
	req.PTY = false
	body, err := json.Marshal(req)
	if err != nil {
		return StreamResult{}, fmt.Errorf("marshal stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL("/v1/execute/stream"), bytes.NewReader(body))
	if err != nil {
		return StreamResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return StreamResult{}, fmt.Errorf("dial world agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return StreamResult{}, fmt.Errorf("world agent stream: HTTP %d: %s", resp.StatusCode, string(data))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var result StreamResult
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return result, fmt.Errorf("decode stream frame: %w", err)
		}

		switch f.Type {
		case "start":
			result.SpanID = f.SpanID
		case "stdout":
			if h.OnStdout != nil {
				if chunk, derr := base64.StdEncoding.DecodeString(f.ChunkB64); derr == nil {
					h.OnStdout(chunk)
				}
			}
		case "stderr":
			if h.OnStderr != nil {
				if chunk, derr := base64.StdEncoding.DecodeString(f.ChunkB64); derr == nil {
					h.OnStderr(chunk)
				}
			}
		case "event":
			if h.OnEvent != nil {
				h.OnEvent(f.Event)
			}
		case "exit":
			if f.Exit != nil {
				result.Exit = *f.Exit
			}
			result.ScopesUsed = f.ScopesUsed
			result.FsDiff = f.FsDiff
			return result, nil
		case "error":
			return result, fmt.Errorf("world agent error: %s", f.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read stream: %w", err)
	}
	return result, fmt.Errorf("world agent stream closed before exit frame")
}
