package worldagent

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
)

func TestDefaultSocketPathHonorsOverride(t *testing.T) {
	env := func(k string) string {
		if k == "SUBSTRATE_WORLD_SOCKET" {
			return "/tmp/custom.sock"
		}
		return ""
	}
	if got := DefaultSocketPath(env); got != "/tmp/custom.sock" {
		t.Errorf("got %q", got)
	}
}

func TestDefaultSocketPathDefault(t *testing.T) {
	if got := DefaultSocketPath(nil); got == "" {
		t.Error("expected a non-empty default socket path")
	}
}

func TestCheckBearerToken(t *testing.T) {
	if !CheckBearerToken("Bearer secret123", "secret123") {
		t.Error("matching token should pass")
	}
	if CheckBearerToken("Bearer wrong", "secret123") {
		t.Error("mismatched token should fail")
	}
	if CheckBearerToken("secret123", "secret123") {
		t.Error("missing Bearer prefix should fail")
	}
}

func TestDeriveSessionTokenIsStableAndSessionScoped(t *testing.T) {
	a := DeriveSessionToken("shared-secret", "sess-1")
	b := DeriveSessionToken("shared-secret", "sess-1")
	if a != b {
		t.Error("same secret and session id should derive the same token")
	}
	c := DeriveSessionToken("shared-secret", "sess-2")
	if a == c {
		t.Error("different session ids should derive different tokens")
	}
	if !CheckBearerToken("Bearer "+a, a) {
		t.Error("derived token should round-trip through CheckBearerToken")
	}
}

func unixClient(t *testing.T, handler http.Handler) (*Client, func()) {
	t.Helper()
	dir := t.TempDir()
	sockPath := dir + "/world.sock"
	l, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(l)
	c := NewClient(KindUnixSocket, sockPath)
	return c, func() { srv.Close() }
}

func TestExecuteStreamHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/execute/stream", func(w http.ResponseWriter, r *http.Request) {
		var req StreamRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.PTY {
			t.Error("stream request must force pty=false")
		}
		w.WriteHeader(http.StatusOK)
		lines := []string{
			`{"type":"start","span_id":"abc123"}`,
			`{"type":"stdout","chunk_b64":"` + base64.StdEncoding.EncodeToString([]byte("hello\n")) + `"}`,
			`{"type":"exit","exit":0,"scopes_used":["fs:read"]}`,
		}
		for _, l := range lines {
			w.Write([]byte(l + "\n"))
		}
	})
	c, cleanup := unixClient(t, mux)
	defer cleanup()

	var stdout strings.Builder
	result, err := c.ExecuteStream(t.Context(), StreamRequest{Cmd: "echo hello", AgentID: "agent-1"}, StreamHandler{
		OnStdout: func(b []byte) { stdout.Write(b) },
	})
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	if result.SpanID != "abc123" || result.Exit != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if stdout.String() != "hello\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestExecuteStreamErrorFrame(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/execute/stream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"type":"error","message":"boom"}` + "\n"))
	})
	c, cleanup := unixClient(t, mux)
	defer cleanup()

	_, err := c.ExecuteStream(t.Context(), StreamRequest{Cmd: "x", AgentID: "a"}, StreamHandler{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected boom error, got %v", err)
	}
}

func TestEnsureReadyPinnedSocketFailsFast(t *testing.T) {
	c := NewClient(KindUnixSocket, "/nonexistent/socket/path")
	env := func(k string) string {
		if k == "SUBSTRATE_WORLD_SOCKET" {
			return "/nonexistent/socket/path"
		}
		return ""
	}
	_, err := EnsureReady(t.Context(), c, env)
	if err == nil {
		t.Error("expected error when pinned socket is unreachable")
	}
}
