package executor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Codex drives the Codex CLI. New stories start a thread with
// `codex exec`; stories carrying a session resume their thread. Output
// is a newline-delimited JSON event stream.
type Codex struct {
	workDir string
	model   string
	pm      *ProcessManager
}

type codexEvent struct {
	Type string `json:"type"`
}

type codexThreadStarted struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
}

type codexTurnCompleted struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewCodex creates the Codex integration.
func NewCodex(cfg Config, pm *ProcessManager) *Codex {
	return &Codex{
		workDir: cfg.WorkDir,
		model:   cfg.Model,
		pm:      pm,
	}
}

// Name returns "codex".
func (c *Codex) Name() string {
	return NameCodex
}

// Plan builds the codex invocation for req. Codex takes the full
// prompt as an argument, so the directive and payload are joined.
func (c *Codex) Plan(req Request) Invocation {
	prompt := directive(req)
	if req.Instructions != "" {
		prompt += "\n\n" + req.Instructions
	}

	var args []string
	if req.SessionID != "" {
		args = []string{"resume", req.SessionID, prompt, "--json"}
	} else {
		args = []string{"exec", prompt, "--json"}
	}

	if c.model != "" {
		args = append(args, "--model", c.model)
	}

	return Invocation{
		Binary: "codex",
		Args:   args,
		Dir:    c.workDir,
	}
}

// Invoke runs the agent once and folds its event stream into a Result.
func (c *Codex) Invoke(ctx context.Context, req Request) (*Result, error) {
	inv := c.Plan(req)

	stdout, _, err := run(ctx, inv, c.pm)
	if err != nil {
		return nil, &InvocationError{Executor: NameCodex, StoryID: req.StoryID, Err: err}
	}

	threadID, output, err := parseCodexEvents(stdout)
	if err != nil {
		return nil, &InvocationError{Executor: NameCodex, StoryID: req.StoryID, Err: err}
	}

	if threadID == "" {
		threadID = req.SessionID
	}
	return &Result{Output: output, SessionID: threadID}, nil
}

// Close is a no-op for the subprocess-per-invocation model.
func (c *Codex) Close() error {
	return nil
}

// parseCodexEvents scans the newline-delimited JSON event stream,
// picking the thread id from ThreadStarted and the content from
// TurnCompleted.
func parseCodexEvents(data []byte) (threadID string, content string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var evt codexEvent
		if parseErr := json.Unmarshal([]byte(line), &evt); parseErr != nil {
			return "", "", fmt.Errorf("parsing codex event: %w", parseErr)
		}

		switch evt.Type {
		case "ThreadStarted":
			var started codexThreadStarted
			if parseErr := json.Unmarshal([]byte(line), &started); parseErr != nil {
				return "", "", fmt.Errorf("parsing ThreadStarted event: %w", parseErr)
			}
			threadID = started.ThreadID

		case "TurnCompleted":
			var completed codexTurnCompleted
			if parseErr := json.Unmarshal([]byte(line), &completed); parseErr != nil {
				return "", "", fmt.Errorf("parsing TurnCompleted event: %w", parseErr)
			}
			content = completed.Content
		}
	}

	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("reading codex events: %w", err)
	}

	return threadID, content, nil
}
