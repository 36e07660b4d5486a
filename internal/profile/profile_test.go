package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadForCwdDefaultsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadForCwd(dir)
	if err != nil {
		t.Fatalf("LoadForCwd: %v", err)
	}
	if p.WorldFSMode != Writable {
		t.Errorf("expected default Writable, got %q", p.WorldFSMode)
	}
}

func TestLoadForCwdReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := "name: locked-down\nworld_fs_mode: isolated\nagent_id: ci\n"
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadForCwd(dir)
	if err != nil {
		t.Fatalf("LoadForCwd: %v", err)
	}
	if p.WorldFSMode != Isolated || p.Name != "locked-down" || p.AgentID != "ci" {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestLoadForCwdWalksUpward(t *testing.T) {
	root := t.TempDir()
	content := "world_fs_mode: read_only\n"
	if err := os.WriteFile(filepath.Join(root, fileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	p, err := LoadForCwd(nested)
	if err != nil {
		t.Fatalf("LoadForCwd: %v", err)
	}
	if p.WorldFSMode != ReadOnly {
		t.Errorf("expected ReadOnly from ancestor profile, got %q", p.WorldFSMode)
	}
}

func TestWorldFSModeRequires(t *testing.T) {
	if Writable.Requires() {
		t.Error("Writable should not require world")
	}
	if !ReadOnly.Requires() || !Isolated.Requires() {
		t.Error("ReadOnly and Isolated should require world")
	}
}
