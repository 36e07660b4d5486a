package worldroot

import (
	"os"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SUBSTRATE_WORLD_ROOT_MODE", "SUBSTRATE_WORLD_ROOT_PATH", "SUBSTRATE_WORLD_ROOT_CAGED"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestResolveWorldRootDefault(t *testing.T) {
	clearEnv(t)
	wr := ResolveWorldRoot(Options{}, "/tmp/work")
	if wr.Mode != FollowCwd || wr.Caged {
		t.Errorf("default should be FollowCwd, caged=false; got %+v", wr)
	}
}

func TestResolveWorldRootEnvOverridesDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUBSTRATE_WORLD_ROOT_MODE", "anchor")
	t.Setenv("SUBSTRATE_WORLD_ROOT_PATH", "/tmp/anchor")
	t.Setenv("SUBSTRATE_WORLD_ROOT_CAGED", "1")

	wr := ResolveWorldRoot(Options{}, "/tmp/work")
	if wr.Mode != Anchor || wr.AnchorPath != "/tmp/anchor" || !wr.Caged {
		t.Errorf("env should win over default, got %+v", wr)
	}
}

func TestResolveWorldRootCLIOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUBSTRATE_WORLD_ROOT_MODE", "anchor")

	cliMode := Off
	wr := ResolveWorldRoot(Options{Mode: &cliMode}, "/tmp/work")
	if wr.Mode != Off {
		t.Errorf("CLI should win over env, got mode=%v", wr.Mode)
	}
}

func TestAnchorRootFollowsCwdWhenNotAnchored(t *testing.T) {
	wr := WorldRoot{Mode: FollowCwd}
	if got := wr.AnchorRoot("/some/cwd"); got != "/some/cwd" {
		t.Errorf("AnchorRoot = %q, want cwd", got)
	}
}

func TestNeedsCage(t *testing.T) {
	cases := []struct {
		name      string
		wr        WorldRoot
		usesShell bool
		want      bool
	}{
		{"caged anchor shell", WorldRoot{Mode: Anchor, Caged: true}, true, true},
		{"follow cwd never cages", WorldRoot{Mode: FollowCwd, Caged: true}, true, false},
		{"not caged", WorldRoot{Mode: Anchor, Caged: false}, true, false},
		{"no shell involved", WorldRoot{Mode: Anchor, Caged: true}, false, false},
	}
	for _, c := range cases {
		if got := NeedsCage(c.wr, c.usesShell); got != c.want {
			t.Errorf("%s: NeedsCage = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestWrapWithAnchorGuardEmbedsAnchorAndCommand(t *testing.T) {
	wr := WorldRoot{Mode: Anchor, AnchorPath: "/tmp/anchor-root", Caged: true}
	got := WrapWithAnchorGuard("echo hi", wr, "/tmp/work")
	if !strings.Contains(got, "substrate_anchor_cd") {
		t.Error("guard should define substrate_anchor_cd")
	}
	if !strings.HasSuffix(got, "echo hi") {
		t.Errorf("guard should end with the original command, got: %s", got)
	}
	if !strings.Contains(got, "cd() { substrate_anchor_cd") {
		t.Error("guard should shadow cd")
	}
}

func TestShellEscapeHandlesEmbeddedQuote(t *testing.T) {
	got := shellEscape("/tmp/o'brien")
	if got != `'/tmp/o'\''brien'` {
		t.Errorf("shellEscape = %q", got)
	}
}
