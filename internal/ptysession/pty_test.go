package ptysession

import (
	"os"
	"strings"
	"testing"

	"github.com/atomize-hq/substrate/internal/plan"
)

func TestTranslateExit(t *testing.T) {
	exit0 := translateExit(0)
	if !exit0.Success() || exit0.Code == nil || *exit0.Code != 0 {
		t.Errorf("translateExit(0) = %+v", exit0)
	}

	exit1 := translateExit(1)
	if exit1.Success() || exit1.Code == nil || *exit1.Code != 1 {
		t.Errorf("translateExit(1) = %+v", exit1)
	}

	// 128 + SIGINT(2) = 130
	killed := translateExit(130)
	if killed.Code != nil || killed.Signal == nil || *killed.Signal != 2 {
		t.Errorf("translateExit(130) = %+v, want signal=2", killed)
	}
}

func TestBuildChildEnvClearsReentryGuardsAndSetsCorrelation(t *testing.T) {
	os.Setenv("SHIM_ACTIVE", "1")
	os.Setenv("SHIM_CALLER", "bash")
	defer os.Unsetenv("SHIM_ACTIVE")
	defer os.Unsetenv("SHIM_CALLER")

	p := &plan.LaunchPlan{SessionID: "sess-1", TraceLogPath: "/tmp/trace.jsonl"}
	env := buildChildEnv(p, "cmd-1")

	joined := strings.Join(env, "\n")
	if strings.Contains(joined, "SHIM_ACTIVE=") {
		t.Error("SHIM_ACTIVE should be cleared for the child")
	}
	if !strings.Contains(joined, "SHIM_SESSION_ID=sess-1") {
		t.Error("expected SHIM_SESSION_ID to be set")
	}
	if !strings.Contains(joined, "SHIM_PARENT_CMD_ID=cmd-1") {
		t.Error("expected SHIM_PARENT_CMD_ID to be set")
	}
}

func TestBuildChildEnvDefaultsTermWhenAbsent(t *testing.T) {
	old, had := os.LookupEnv("TERM")
	os.Unsetenv("TERM")
	defer func() {
		if had {
			os.Setenv("TERM", old)
		}
	}()

	env := buildChildEnv(&plan.LaunchPlan{}, "cmd-1")
	found := false
	for _, kv := range env {
		if kv == "TERM=xterm-256color" {
			found = true
		}
	}
	if !found {
		t.Error("expected default TERM=xterm-256color")
	}
}

func TestIsPTYActiveTracksSetActive(t *testing.T) {
	if IsPTYActive() {
		t.Fatal("no PTY should be active initially")
	}
	m := &Manager{}
	SetActive(m)
	defer SetActive(nil)
	if !IsPTYActive() {
		t.Error("expected IsPTYActive true after SetActive")
	}
}
