package plan

import (
	"path/filepath"
	"testing"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func baseInputs(t *testing.T) Inputs {
	t.Helper()
	return Inputs{
		Env:          func(string) string { return "" },
		Cwd:          t.TempDir(),
		StdinTTY:     true,
		ShimDir:      "/opt/substrate/shims",
		OriginalPath: "/usr/bin:/bin",
	}
}

func TestBuildWrapMode(t *testing.T) {
	p, err := Build(CLIFlags{Command: strp("echo hi")}, baseInputs(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Mode != ModeWrap || p.WrapCmd != "echo hi" {
		t.Errorf("expected wrap mode, got %+v", p)
	}
}

func TestBuildScriptModeRequiresExistingFile(t *testing.T) {
	in := baseInputs(t)
	missing := filepath.Join(in.Cwd, "nope.sh")
	_, err := Build(CLIFlags{ScriptFile: &missing}, in)
	if err == nil {
		t.Error("expected error for nonexistent script")
	}
}

func TestBuildPipeModeWhenStdinNotTTY(t *testing.T) {
	in := baseInputs(t)
	in.StdinTTY = false
	p, err := Build(CLIFlags{}, in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Mode != ModePipe {
		t.Errorf("expected pipe mode, got %v", p.Mode)
	}
}

func TestBuildInteractiveDefault(t *testing.T) {
	p, err := Build(CLIFlags{PTY: boolp(true)}, baseInputs(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Mode != ModeInteractive || !p.UsePTY {
		t.Errorf("expected interactive+pty, got %+v", p)
	}
}

func TestNoWorldPrecedence(t *testing.T) {
	in := baseInputs(t)
	in.Env = func(k string) string {
		if k == "SUBSTRATE_WORLD" {
			return "disabled"
		}
		return ""
	}
	// CLI World=true must win over env disabling it.
	p, err := Build(CLIFlags{World: boolp(true)}, in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.NoWorld {
		t.Error("cli.World=true should override env SUBSTRATE_WORLD=disabled")
	}
}

func TestNoWorldFallsBackToEnv(t *testing.T) {
	in := baseInputs(t)
	in.Env = func(k string) string {
		if k == "SUBSTRATE_WORLD_ENABLED" {
			return "0"
		}
		return ""
	}
	p, err := Build(CLIFlags{}, in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !p.NoWorld {
		t.Error("SUBSTRATE_WORLD_ENABLED=0 should disable world absent CLI override")
	}
}

func TestShimmedPathAbsentWhenSkipped(t *testing.T) {
	p, err := Build(CLIFlags{ShimSkip: boolp(true)}, baseInputs(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.ShimmedPath != "" {
		t.Errorf("expected empty shimmed path, got %q", p.ShimmedPath)
	}
}

func TestShimmedPathDedupsAndPrepends(t *testing.T) {
	in := baseInputs(t)
	in.OriginalPath = "/opt/substrate/shims:/usr/bin:/bin"
	p, err := Build(CLIFlags{}, in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "/opt/substrate/shims:/usr/bin:/bin"
	if p.ShimmedPath != want {
		t.Errorf("ShimmedPath = %q, want %q", p.ShimmedPath, want)
	}
}

func TestSessionIDReusedWhenProvided(t *testing.T) {
	p, err := Build(CLIFlags{SessionID: strp("fixed-session")}, baseInputs(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.SessionID != "fixed-session" {
		t.Errorf("SessionID = %q, want fixed-session", p.SessionID)
	}
}
