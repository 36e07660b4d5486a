package classify

import "testing"

func noEnv(string) string { return "" }

func TestEmptyCommandIsNoop(t *testing.T) {
	if NeedsPTY("", noEnv) {
		t.Error("empty command should not need a pty")
	}
	if NeedsPTY("   ", noEnv) {
		t.Error("whitespace-only command should not need a pty")
	}
}

func TestInteractiveShell(t *testing.T) {
	if !NeedsPTY("bash", noEnv) {
		t.Error("bare bash should need a pty")
	}
	if NeedsPTY("bash -c 'echo hi'", noEnv) {
		t.Error("bash -c should not need a pty")
	}
}

func TestSSHVariants(t *testing.T) {
	cases := []struct {
		cmd  string
		want bool
	}{
		{"ssh host", true},
		{"ssh host ls -la", false},
		{"ssh -t host ls -la", true},
		{"ssh -tt host", true},
		{"ssh -T host ls", false},
		{"ssh -N -L 8080:localhost:80 host", false},
		{"ssh -O exit host", false},
		{"ssh -W host:22 jump", false},
		{"ssh -o BatchMode=yes host", false},
		{"ssh -o RequestTTY=force host ls", true},
		{"ssh -o RequestTTY=no host", false},
	}
	for _, c := range cases {
		if got := NeedsPTY(c.cmd, noEnv); got != c.want {
			t.Errorf("NeedsPTY(%q) = %v, want %v", c.cmd, got, c.want)
		}
	}
}

func TestGitVariants(t *testing.T) {
	cases := []struct {
		cmd  string
		want bool
	}{
		{"git commit -m \"msg\"", false},
		{"git commit", true},
		{"git commit --no-edit", false},
		{"git commit --no-edit -e", true},
		{"git add file.go", false},
		{"git add -p", true},
		{"git add -i", true},
		{"git rebase main", false},
		{"git rebase -i main", true},
		{"git log", false},
		{"git diff", false},
		{"git show HEAD", false},
		{"git blame file.go", false},
		{"git -C /repo commit -m hi", false},
	}
	for _, c := range cases {
		if got := NeedsPTY(c.cmd, noEnv); got != c.want {
			t.Errorf("NeedsPTY(%q) = %v, want %v", c.cmd, got, c.want)
		}
	}
}

func TestShellMetaDefaultsToFalse(t *testing.T) {
	if NeedsPTY("echo hi | vim -", noEnv) {
		t.Error("top-level meta should return false by default, pipeline-last recursion is opt-in")
	}
	if NeedsPTY("echo hi | cat", noEnv) {
		t.Error("a pipeline ending in a plain command should not need a pty")
	}
	if NeedsPTY("foo > bar", noEnv) {
		t.Error("a redirection should not need a pty")
	}
	if NeedsPTY("a; b", noEnv) {
		t.Error("a top-level sequence should not need a pty")
	}
}

func TestPipelineLastSegmentOptIn(t *testing.T) {
	env := func(k string) string {
		if k == "SUBSTRATE_PTY_PIPELINE_LAST" {
			return "1"
		}
		return ""
	}
	if !NeedsPTY("echo hi | vim -", env) {
		t.Error("with last-segment recursion enabled, a pipeline ending in an interactive tool should need a pty")
	}
	if NeedsPTY("echo hi | cat", env) {
		t.Error("with last-segment recursion enabled, a pipeline ending in a plain command should not need a pty")
	}
	if NeedsPTY("echo hi | cat", noEnv) {
		t.Error("with the env unset, recursion must not happen")
	}
}

func TestSudoPeeling(t *testing.T) {
	if !NeedsPTY("sudo bash", noEnv) {
		t.Error("sudo bash should need a pty")
	}
	if NeedsPTY("sudo -S bash", noEnv) {
		t.Error("sudo -S reads password from stdin, should not need a pty")
	}
}

func TestWrapperPeeling(t *testing.T) {
	if !NeedsPTY("env FOO=bar bash", noEnv) {
		t.Error("env-wrapped bash should still be classified as interactive")
	}
	if !NeedsPTY("nice -n10 bash", noEnv) {
		t.Error("nice-wrapped bash should still be classified as interactive")
	}
}

func TestREPLs(t *testing.T) {
	if !NeedsPTY("python3", noEnv) {
		t.Error("bare python3 should need a pty")
	}
	if NeedsPTY("python3 script.py", noEnv) {
		t.Error("python3 running a script file should not need a pty")
	}
}

func TestContainerExec(t *testing.T) {
	if !NeedsPTY("docker exec -it mycontainer bash", noEnv) {
		t.Error("docker exec -it should need a pty")
	}
	if NeedsPTY("docker exec mycontainer ls", noEnv) {
		t.Error("docker exec without -it should not need a pty")
	}
}

func TestKnownTUIFallback(t *testing.T) {
	if !NeedsPTY("htop", noEnv) {
		t.Error("htop should need a pty via the known-TUI fallback")
	}
}

func TestPlainCommandDoesNotNeedPTY(t *testing.T) {
	if NeedsPTY("ls -la /tmp", noEnv) {
		t.Error("ls should not need a pty")
	}
}
