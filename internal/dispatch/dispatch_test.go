package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/atomize-hq/substrate/internal/plan"
	"github.com/atomize-hq/substrate/internal/trace"
)

func testDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	dir := t.TempDir()
	tc, err := trace.Init(filepath.Join(dir, "trace.jsonl"))
	if err != nil {
		t.Fatalf("trace.Init: %v", err)
	}
	noEnv := func(string) string { return "" }
	return New(tc, nil, nil, NewEventBus(), noEnv), dir
}

func basePlan() *plan.LaunchPlan {
	return &plan.LaunchPlan{
		ShellPath: "/bin/sh",
		NoWorld:   true,
		SessionID: "sess-test",
	}
}

func TestExecutePwdBuiltin(t *testing.T) {
	d, dir := testDispatcher(t)

	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(old)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	exit, err := d.Execute(context.Background(), basePlan(), "pwd", "cmd-1", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exit.Code == nil || *exit.Code != 0 {
		t.Errorf("expected exit 0, got %+v", exit)
	}
}

func TestExecuteCdBuiltinChangesDirectory(t *testing.T) {
	d, dir := testDispatcher(t)

	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(old)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(dir, "child")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	exit, err := d.Execute(context.Background(), basePlan(), "cd "+sub, "cmd-2", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !exit.Success() {
		t.Errorf("expected success, got %+v", exit)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	resolvedSub, _ := filepath.EvalSymlinks(sub)
	resolvedCwd, _ := filepath.EvalSymlinks(cwd)
	if resolvedCwd != resolvedSub {
		t.Errorf("expected cwd %q, got %q", resolvedSub, resolvedCwd)
	}
}

func TestExecuteHostShellTrueExitsZero(t *testing.T) {
	d, dir := testDispatcher(t)

	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(old)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	exit, err := d.Execute(context.Background(), basePlan(), "true", "cmd-3", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !exit.Success() {
		t.Errorf("expected success, got %+v", exit)
	}
}

func TestExecuteHostShellNonzeroExit(t *testing.T) {
	d, dir := testDispatcher(t)

	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(old)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	exit, err := d.Execute(context.Background(), basePlan(), "exit 7", "cmd-4", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exit.Code == nil || *exit.Code != 7 {
		t.Errorf("expected exit 7, got %+v", exit)
	}
}

func TestExecuteWorldRequiredGate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".substrate-profile.yaml"), []byte("world_fs_mode: isolated\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc, err := trace.Init(filepath.Join(dir, "trace.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	d := New(tc, nil, nil, NewEventBus(), func(string) string { return "" })

	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(old)
	// run from a subdirectory with no profile of its own, below the isolated root
	work := filepath.Join(dir, "work")
	if err := os.Mkdir(work, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}

	_, err = d.Execute(context.Background(), basePlan(), "true", "cmd-5", nil)
	if err == nil {
		t.Fatal("expected WorldRequired error when profile demands world but it's disabled")
	}
}
