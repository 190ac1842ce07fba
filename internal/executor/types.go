package executor

import (
	"fmt"
)

// Request describes one story handed to the external agent.
type Request struct {
	StoryID      string
	Title        string
	Instructions string // fixed instruction payload, opaque to the loop
	SessionID    string // prior agent session for this story, empty for a fresh one
}

// Invocation is the fully resolved command for one request. Arguments
// travel as an argv vector and never pass through a shell, so story
// titles containing quoting or metacharacters stay inert.
type Invocation struct {
	Binary string
	Args   []string
	Stdin  []byte
	Dir    string
}

// Result carries what the agent reported back. The scheduler never
// treats it as proof of progress; completion is observed by re-reading
// persisted state.
type Result struct {
	Output    string
	SessionID string // session the agent ran under, kept for resume
}

// Config selects and parameterizes an executor integration.
type Config struct {
	Type     string // "claude", "codex", or "goose"
	WorkDir  string
	Model    string
	Provider string // goose local LLM provider (e.g. "ollama")
}

// InvocationError wraps any failure of a single executor invocation:
// spawn failure, nonzero exit, timeout, or unparseable output. The
// loop logs these and keeps going.
type InvocationError struct {
	Executor string
	StoryID  string
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s invocation for %s failed: %v", e.Executor, e.StoryID, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
