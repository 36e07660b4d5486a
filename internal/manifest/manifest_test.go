package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadMergesOverlayAndSorts(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
version: 2
managers:
  - name: nvm
    priority: 20
    detect:
      files: ["~/.nvm/nvm.sh"]
      commands: ["nvm --version"]
      env: { NVM_DIR: "~/.nvm" }
    init:
      shell: "source ~/.nvm/nvm.sh"
    errors: ["nvm: .*"]
  - name: pyenv
    priority: 5
    init:
      shell: "eval \"$(pyenv init -)\""
`)
	overlay := writeFile(t, dir, "overlay.yaml", `
version: 2
managers:
  nvm:
    priority: 1
`)

	m, err := Load(base, overlay)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Managers) != 2 {
		t.Fatalf("got %d managers, want 2", len(m.Managers))
	}
	// pyenv still has priority 5, nvm overridden to 1 — nvm should sort first now.
	if m.Managers[0].Name != "nvm" || m.Managers[0].Priority != 1 {
		t.Errorf("first manager = %+v, want nvm priority=1", m.Managers[0])
	}
	if m.Managers[1].Name != "pyenv" || m.Managers[1].Priority != 5 {
		t.Errorf("second manager = %+v, want pyenv priority=5", m.Managers[1])
	}
	// overlay's empty errors list must not clear base's errors (scenario 5 in spec.md §8).
	if len(m.Managers[0].ErrorsSource) != 1 || m.Managers[0].ErrorsSource[0] != "nvm: .*" {
		t.Errorf("nvm errors = %v, want base errors preserved", m.Managers[0].ErrorsSource)
	}
}

func TestLoadMissingOverlayIsNotError(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", "version: 1\nmanagers: []\n")
	m, err := Load(base, filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing overlay should not error: %v", err)
	}
	if len(m.Managers) != 0 {
		t.Fatalf("expected no managers, got %d", len(m.Managers))
	}
}

func TestLoadVersionMismatchFails(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", "version: 2\nmanagers: []\n")
	overlay := writeFile(t, dir, "overlay.yaml", "version: 1\nmanagers: []\n")
	if _, err := Load(base, overlay); err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestLoadDuplicateManagerInOneFileFails(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
version: 1
managers:
  - name: nvm
  - name: nvm
`)
	if _, err := Load(base, ""); err == nil {
		t.Fatal("expected duplicate manager error")
	}
}

func TestLoadInvalidRegexFails(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
version: 1
managers:
  - name: broken
    errors: ["("]
`)
	if _, err := Load(base, ""); err == nil {
		t.Fatal("expected invalid regex error")
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("SUBSTRATE_TEST_VAR", "hello")
	os.Unsetenv("SUBSTRATE_TEST_UNSET")

	cases := []struct {
		in, want string
	}{
		{"~/.nvm/nvm.sh", filepath.Join(home(), ".nvm/nvm.sh")},
		{"${SUBSTRATE_TEST_VAR}", "hello"},
		{"$SUBSTRATE_TEST_VAR", "hello"},
		{"${SUBSTRATE_TEST_UNSET}", "${SUBSTRATE_TEST_UNSET}"},
		{"${unterminated", "${unterminated"},
		{"${}", ""},
		{"$$", "$$"},
		{"literal", "literal"},
	}
	for _, c := range cases {
		if got := ExpandPath(c.in); got != c.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveForPlatform(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
version: 1
managers:
  - name: nvm
    init:
      shell: "source nvm"
      powershell: "nvm-windows"
`)
	m, err := Load(base, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	linux := m.ResolveForPlatform(PlatformLinux)
	if linux[0].Init.PowerShell != "" {
		t.Error("linux projection should null powershell init")
	}
	if linux[0].Init.Shell == "" {
		t.Error("linux projection should keep shell init")
	}
	windows := m.ResolveForPlatform(PlatformWindows)
	if windows[0].Init.Shell != "" {
		t.Error("windows projection should null shell init")
	}
}

func TestDoctorReportsDetectionByFile(t *testing.T) {
	dir := t.TempDir()
	marker := writeFile(t, dir, "nvm.sh", "# stand-in for an installed nvm")

	specs := []ManagerSpec{
		{Name: "nvm", Detect: DetectSpec{Files: []string{marker}}},
		{Name: "ghost", Detect: DetectSpec{Files: []string{dir + "/does-not-exist"}}},
	}

	states := Doctor(specs)
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
	if !states[0].Detected || states[0].Reason == "" {
		t.Errorf("nvm should be detected via marker file, got %+v", states[0])
	}
	if states[1].Detected {
		t.Errorf("ghost should not be detected, got %+v", states[1])
	}
}
