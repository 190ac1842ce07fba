package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMaybeArchive_IdentityChange(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "prd.json")
	logPath := filepath.Join(dir, "progress.txt")

	stateContent := `{"items":[{"id":"US-1","done":true}]}`
	if err := os.WriteFile(statePath, []byte(stateContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte("old entry one\nold entry two\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := Archiver{Dir: dir, StatePath: statePath, LogPath: logPath}
	rec, err := a.MaybeArchive(context.Background(), "ralph/feature-y", "ralph/feature-x")
	if err != nil {
		t.Fatalf("MaybeArchive: %v", err)
	}
	if rec == nil {
		t.Fatal("expected an archive record")
	}

	wantDir := filepath.Join(dir, "archive", time.Now().Format("2006-01-02")+"-feature-x")
	if rec.Dir != wantDir {
		t.Errorf("archive dir = %s, want %s", rec.Dir, wantDir)
	}

	copied, err := os.ReadFile(filepath.Join(wantDir, "prd.json"))
	if err != nil {
		t.Fatalf("reading archived state: %v", err)
	}
	if string(copied) != stateContent {
		t.Errorf("archived state = %q, want original content", copied)
	}

	copiedLog, err := os.ReadFile(filepath.Join(wantDir, "progress.txt"))
	if err != nil {
		t.Fatalf("reading archived log: %v", err)
	}
	if !strings.Contains(string(copiedLog), "old entry one") {
		t.Errorf("archived log missing original entries: %q", copiedLog)
	}

	fresh, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading reset log: %v", err)
	}
	if strings.Contains(string(fresh), "old entry") {
		t.Errorf("log not reset, still has old entries: %q", fresh)
	}
	if !strings.Contains(string(fresh), "# Progress log") {
		t.Errorf("reset log missing header: %q", fresh)
	}
	if !strings.Contains(string(fresh), "# Started") {
		t.Errorf("reset log missing timestamp line: %q", fresh)
	}
}

func TestMaybeArchive_NoOpCases(t *testing.T) {
	tests := []struct {
		name    string
		current string
		last    string
	}{
		{name: "same identity", current: "ralph/feature-x", last: "ralph/feature-x"},
		{name: "no current identity", current: "", last: "ralph/feature-x"},
		{name: "no previous identity", current: "ralph/feature-x", last: ""},
		{name: "both empty", current: "", last: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			logPath := filepath.Join(dir, "progress.txt")
			if err := os.WriteFile(logPath, []byte("entries stay\n"), 0o644); err != nil {
				t.Fatal(err)
			}

			a := Archiver{Dir: dir, StatePath: filepath.Join(dir, "prd.json"), LogPath: logPath}
			rec, err := a.MaybeArchive(context.Background(), tt.current, tt.last)
			if err != nil {
				t.Fatalf("MaybeArchive: %v", err)
			}
			if rec != nil {
				t.Errorf("record = %+v, want nil", rec)
			}

			if _, err := os.Stat(filepath.Join(dir, "archive")); !os.IsNotExist(err) {
				t.Error("archive folder created on a no-op")
			}
			content, err := os.ReadFile(logPath)
			if err != nil {
				t.Fatal(err)
			}
			if string(content) != "entries stay\n" {
				t.Errorf("log mutated on a no-op: %q", content)
			}
		})
	}
}

func TestMaybeArchive_MissingFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "prd.json")
	logPath := filepath.Join(dir, "progress.txt")
	if err := os.WriteFile(logPath, []byte("only the log exists\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := Archiver{Dir: dir, StatePath: statePath, LogPath: logPath}
	rec, err := a.MaybeArchive(context.Background(), "ralph/b", "ralph/a")
	if err != nil {
		t.Fatalf("MaybeArchive: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record despite the missing state file")
	}

	if _, err := os.Stat(filepath.Join(rec.Dir, "prd.json")); !os.IsNotExist(err) {
		t.Error("missing state file unexpectedly appeared in the archive")
	}
	if _, err := os.Stat(filepath.Join(rec.Dir, "progress.txt")); err != nil {
		t.Errorf("log not archived: %v", err)
	}
}

func TestMaybeArchive_SlashesInIdentity(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "progress.txt")

	a := Archiver{Dir: dir, LogPath: logPath}
	rec, err := a.MaybeArchive(context.Background(), "ralph/next", "ralph/feat/nested")
	if err != nil {
		t.Fatalf("MaybeArchive: %v", err)
	}
	want := time.Now().Format("2006-01-02") + "-feat-nested"
	if filepath.Base(rec.Dir) != want {
		t.Errorf("archive folder = %s, want %s", filepath.Base(rec.Dir), want)
	}
}

func TestEnsureLog(t *testing.T) {
	t.Run("creates missing log", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "progress.txt")

		a := Archiver{Dir: dir, LogPath: logPath}
		if err := a.EnsureLog(); err != nil {
			t.Fatalf("EnsureLog: %v", err)
		}
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("log not created: %v", err)
		}
		if !strings.Contains(string(content), "# Progress log") {
			t.Errorf("log content = %q, want header", content)
		}
	})

	t.Run("keeps existing log", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "progress.txt")
		if err := os.WriteFile(logPath, []byte("do not touch\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		a := Archiver{Dir: dir, LogPath: logPath}
		if err := a.EnsureLog(); err != nil {
			t.Fatalf("EnsureLog: %v", err)
		}
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != "do not touch\n" {
			t.Errorf("existing log rewritten: %q", content)
		}
	})
}
