package backlog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeState(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing state file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		content      string
		wantIdentity string
		wantLen      int
		wantDone     map[string]bool
		wantDeps     map[string][]string
	}{
		{
			name: "plain backlog",
			file: "prd.json",
			content: `{
				"runIdentity": "ralph/feature-x",
				"items": [
					{"id": "US-1", "title": "Login form", "priority": 1, "done": true},
					{"id": "US-2", "title": "Logout", "priority": 2, "dependsOn": ["US-1"], "done": false}
				]
			}`,
			wantIdentity: "ralph/feature-x",
			wantLen:      2,
			wantDone:     map[string]bool{"US-1": true, "US-2": false},
			wantDeps:     map[string][]string{"US-1": nil, "US-2": {"US-1"}},
		},
		{
			name: "missing fields default permissively",
			file: "prd.json",
			content: `{
				"items": [
					{"id": "US-1", "title": "No deps, no done", "priority": 3}
				]
			}`,
			wantIdentity: "",
			wantLen:      1,
			wantDone:     map[string]bool{"US-1": false},
			wantDeps:     map[string][]string{"US-1": nil},
		},
		{
			name: "legacy passes key marks completion",
			file: "prd.json",
			content: `{
				"items": [
					{"id": "US-1", "title": "Old format", "priority": 1, "passes": true}
				]
			}`,
			wantLen:  1,
			wantDone: map[string]bool{"US-1": true},
		},
		{
			name: "legacy branchName key carries identity",
			file: "prd.json",
			content: `{
				"branchName": "ralph/feature-y",
				"items": [{"id": "US-1", "title": "x", "priority": 1}]
			}`,
			wantIdentity: "ralph/feature-y",
			wantLen:      1,
		},
		{
			name: "yaml variant",
			file: "prd.yaml",
			content: `runIdentity: ralph/feature-z
items:
  - id: US-1
    title: YAML story
    priority: 1
    dependsOn: [US-0]
    done: false
  - id: US-0
    title: Foundation
    priority: 0
    done: true
`,
			wantIdentity: "ralph/feature-z",
			wantLen:      2,
			wantDone:     map[string]bool{"US-0": true, "US-1": false},
			wantDeps:     map[string][]string{"US-1": {"US-0"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeState(t, tt.file, tt.content)

			set, err := Load(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if set.Identity != tt.wantIdentity {
				t.Errorf("identity = %q, want %q", set.Identity, tt.wantIdentity)
			}
			if set.Len() != tt.wantLen {
				t.Errorf("len = %d, want %d", set.Len(), tt.wantLen)
			}
			for id, want := range tt.wantDone {
				item, ok := set.Get(id)
				if !ok {
					t.Errorf("item %s not found", id)
					continue
				}
				if item.Done != want {
					t.Errorf("item %s done = %v, want %v", id, item.Done, want)
				}
			}
			for id, want := range tt.wantDeps {
				got := set.DependenciesOf(id)
				if len(got) != len(want) {
					t.Errorf("item %s deps = %v, want %v", id, got, want)
					continue
				}
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("item %s deps = %v, want %v", id, got, want)
						break
					}
				}
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "malformed json",
			file:    "prd.json",
			content: `{not json`,
		},
		{
			name:    "malformed yaml",
			file:    "prd.yaml",
			content: "items:\n  - id: [broken",
		},
		{
			name: "duplicate ids",
			file: "prd.json",
			content: `{"items": [
				{"id": "US-1", "title": "a", "priority": 1},
				{"id": "US-1", "title": "b", "priority": 2}
			]}`,
		},
		{
			name: "self dependency",
			file: "prd.json",
			content: `{"items": [
				{"id": "US-1", "title": "a", "priority": 1, "dependsOn": ["US-1"]}
			]}`,
		},
		{
			name:    "missing id",
			file:    "prd.json",
			content: `{"items": [{"title": "anonymous", "priority": 1}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeState(t, tt.file, tt.content)

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %T: %v", err, err)
			}
			if parseErr.Path != path {
				t.Errorf("ParseError path = %q, want %q", parseErr.Path, path)
			}
		})
	}
}
