package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/storyloop/internal/backlog"
	"github.com/aristath/storyloop/internal/config"
	"github.com/aristath/storyloop/internal/executor"
	"github.com/aristath/storyloop/internal/history"
)

// chdir switches the working directory for one test and restores it
// afterwards. Run wiring resolves every relative path against the
// working directory, so the e2e tests each get their own.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("changing directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restoring directory: %v", err)
		}
	})
}

// fakeAgent installs an executable claude stand-in on PATH that marks
// the first pending story done and prints a well-formed JSON result.
func fakeAgent(t *testing.T) {
	t.Helper()
	binDir := t.TempDir()
	script := `#!/bin/bash
sed -i 's/"done": false/"done": true/' prd.json
echo '{"session_id":"sess-e2e","result":{"content":[{"type":"text","text":"implemented"}]}}'
`
	path := filepath.Join(binDir, "claude")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("writing fake agent: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestExecuteRun_CompletesBacklog(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	fakeAgent(t)
	t.Setenv(config.EnvExecutor, "")
	t.Setenv(config.EnvModel, "")

	state := `{
  "runIdentity": "ralph/e2e",
  "items": [
    { "id": "US-1", "title": "One story", "priority": 1, "done": false }
  ]
}
`
	if err := os.WriteFile("prd.json", []byte(state), 0644); err != nil {
		t.Fatalf("writing state: %v", err)
	}

	cfg := config.Default()
	cfg.MaxIterations = 3
	cfg.Cooldown = 10 * time.Millisecond
	cfg.Timeout = 5 * time.Second

	if err := executeRun(cfg); err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}

	// The agent flipped the story; the loop observed it on reload.
	set, err := backlog.Load("prd.json")
	if err != nil {
		t.Fatalf("reloading state: %v", err)
	}
	total, done := set.Counts()
	if total != 1 || done != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", total, done)
	}

	if _, err := os.Stat(cfg.LogPath); err != nil {
		t.Errorf("progress log missing: %v", err)
	}

	// The run, its attempt, and the agent session all landed in the ledger.
	ctx := context.Background()
	store, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("recorded runs = %d, want 1", len(runs))
	}
	if runs[0].Outcome != "completed" {
		t.Errorf("outcome = %q, want %q", runs[0].Outcome, "completed")
	}
	if runs[0].Iterations != 2 {
		t.Errorf("iterations = %d, want 2", runs[0].Iterations)
	}

	session, err := store.Session(ctx, "US-1", "claude")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if session != "sess-e2e" {
		t.Errorf("session = %q, want %q", session, "sess-e2e")
	}
}

func TestExecuteRun_MissingStateIsFatal(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(config.EnvExecutor, "")
	t.Setenv(config.EnvModel, "")

	cfg := config.Default()
	cfg.MaxIterations = 1

	err := executeRun(cfg)
	if !errors.Is(err, backlog.ErrNotFound) {
		t.Errorf("err = %v, want backlog.ErrNotFound", err)
	}
}

func TestResolveConfig(t *testing.T) {
	t.Setenv(config.EnvExecutor, "")
	t.Setenv(config.EnvModel, "")

	t.Run("Changed flags override defaults", func(t *testing.T) {
		chdir(t, t.TempDir())
		cmd := &cobra.Command{Use: "run"}
		addRunFlags(cmd)
		for flag, value := range map[string]string{
			"max-iterations": "3",
			"executor":       "goose",
			"cooldown":       "50ms",
			"dry-run":        "true",
		} {
			if err := cmd.Flags().Set(flag, value); err != nil {
				t.Fatalf("setting --%s: %v", flag, err)
			}
		}

		cfg, err := resolveConfig(cmd)
		if err != nil {
			t.Fatalf("resolveConfig: %v", err)
		}
		if cfg.MaxIterations != 3 {
			t.Errorf("MaxIterations = %d, want 3", cfg.MaxIterations)
		}
		if cfg.Executor != "goose" {
			t.Errorf("Executor = %q, want %q", cfg.Executor, "goose")
		}
		if cfg.Cooldown != 50*time.Millisecond {
			t.Errorf("Cooldown = %v, want 50ms", cfg.Cooldown)
		}
		if !cfg.DryRun {
			t.Error("DryRun = false, want true")
		}
		if cfg.StatePath != config.Default().StatePath {
			t.Errorf("StatePath = %q, want default", cfg.StatePath)
		}
	})

	t.Run("Untouched flags keep environment values", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv(config.EnvExecutor, "codex")

		cmd := &cobra.Command{Use: "run"}
		addRunFlags(cmd)

		cfg, err := resolveConfig(cmd)
		if err != nil {
			t.Fatalf("resolveConfig: %v", err)
		}
		if cfg.Executor != "codex" {
			t.Errorf("Executor = %q, want %q from environment", cfg.Executor, "codex")
		}
	})
}

func TestExecuteInit(t *testing.T) {
	tmpDir := t.TempDir()

	if err := executeInit(tmpDir); err != nil {
		t.Fatalf("executeInit: %v", err)
	}

	for _, path := range []string{
		config.ProjectPath(tmpDir),
		filepath.Join(tmpDir, "prd.json"),
		filepath.Join(tmpDir, "PROMPT.md"),
		filepath.Join(tmpDir, "progress.txt"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	// A second init leaves existing files alone.
	custom := `{"runIdentity": "ralph/mine", "items": []}`
	statePath := filepath.Join(tmpDir, "prd.json")
	if err := os.WriteFile(statePath, []byte(custom), 0644); err != nil {
		t.Fatalf("writing custom state: %v", err)
	}

	if err := executeInit(tmpDir); err != nil {
		t.Fatalf("second executeInit: %v", err)
	}
	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatalf("reading state: %v", err)
	}
	if !strings.Contains(string(data), "ralph/mine") {
		t.Error("init overwrote an existing state file")
	}
}

func TestRenderItem(t *testing.T) {
	items := []backlog.WorkItem{
		{ID: "US-0", Title: "Base", Done: true},
		{ID: "US-1", Title: "Ready one", DependsOn: []string{"US-0"}},
		{ID: "US-2", Title: "Waiting one", DependsOn: []string{"US-1"}},
	}
	set, err := backlog.NewSet("", items)
	if err != nil {
		t.Fatalf("building set: %v", err)
	}

	tests := []struct {
		item backlog.WorkItem
		want []string
	}{
		{items[0], []string{"done", "US-0", "Base"}},
		{items[1], []string{"ready", "US-1", "Ready one"}},
		{items[2], []string{"waits", "US-2", "waits on US-1"}},
	}
	for _, tt := range tests {
		line := renderItem(tt.item, set)
		for _, want := range tt.want {
			if !strings.Contains(line, want) {
				t.Errorf("renderItem(%s) = %q, missing %q", tt.item.ID, line, want)
			}
		}
	}
}

// TestProcessManagerKillAllOnShutdown verifies that ProcessManager.KillAll
// terminates tracked agent processes during shutdown.
func TestProcessManagerKillAllOnShutdown(t *testing.T) {
	pm := executor.NewProcessManager()

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting subprocess: %v", err)
	}
	pm.Track(cmd)

	if count := pm.Count(); count != 1 {
		t.Errorf("tracked processes = %d, want 1", count)
	}

	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected the killed process to report a non-zero exit")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("process did not terminate after KillAll")
	}

	pm.Untrack(cmd)
	if count := pm.Count(); count != 0 {
		t.Errorf("tracked processes after Untrack = %d, want 0", count)
	}
}

// TestSignalContextCancellation verifies that signal.NotifyContext
// cancels the run context when a signal arrives.
func TestSignalContextCancellation(t *testing.T) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("sending SIGUSR1: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not cancel after SIGUSR1")
	}

	if err := ctx.Err(); err != context.Canceled {
		t.Errorf("ctx.Err() = %v, want context.Canceled", err)
	}
}
