package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Claude drives the Claude Code CLI. Each invocation is a separate
// subprocess; the instruction payload is piped on stdin next to a
// short -p directive naming the story.
type Claude struct {
	workDir string
	model   string
	pm      *ProcessManager
}

// claudeResult is the JSON shape printed by `claude --output-format json`.
type claudeResult struct {
	SessionID string `json:"session_id"`
	Result    struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

// NewClaude creates the Claude Code integration.
func NewClaude(cfg Config, pm *ProcessManager) *Claude {
	return &Claude{
		workDir: cfg.WorkDir,
		model:   cfg.Model,
		pm:      pm,
	}
}

// Name returns "claude".
func (c *Claude) Name() string {
	return NameClaude
}

// Plan builds the claude invocation for req. A request without a prior
// session gets a fresh --session-id; one with a session resumes it.
func (c *Claude) Plan(req Request) Invocation {
	args := []string{"-p", directive(req), "--output-format", "json"}

	if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
	} else {
		args = append(args, "--session-id", uuid.NewString())
	}

	if c.model != "" {
		args = append(args, "--model", c.model)
	}

	return Invocation{
		Binary: "claude",
		Args:   args,
		Stdin:  []byte(req.Instructions),
		Dir:    c.workDir,
	}
}

// Invoke runs the agent once and parses its JSON result.
func (c *Claude) Invoke(ctx context.Context, req Request) (*Result, error) {
	inv := c.Plan(req)

	stdout, stderr, err := run(ctx, inv, c.pm)
	if err != nil {
		return nil, &InvocationError{Executor: NameClaude, StoryID: req.StoryID, Err: err}
	}

	result, err := parseClaudeResult(stdout)
	if err != nil {
		return nil, &InvocationError{
			Executor: NameClaude,
			StoryID:  req.StoryID,
			Err:      fmt.Errorf("%w (stderr: %s)", err, stderr),
		}
	}

	if result.SessionID == "" {
		result.SessionID = sessionFromArgs(inv.Args)
	}
	return result, nil
}

// Close is a no-op for the subprocess-per-invocation model.
func (c *Claude) Close() error {
	return nil
}

// parseClaudeResult extracts the text content and session id from the
// CLI's JSON output.
func parseClaudeResult(data []byte) (*Result, error) {
	var cr claudeResult
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, fmt.Errorf("unmarshaling claude output: %w", err)
	}

	var output string
	for _, item := range cr.Result.Content {
		if item.Type == "text" {
			output += item.Text
		}
	}

	return &Result{Output: output, SessionID: cr.SessionID}, nil
}

// sessionFromArgs recovers the session id an invocation carried, so a
// freshly generated id survives even when the CLI omits it from its
// output.
func sessionFromArgs(args []string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--session-id" || args[i] == "--resume" {
			return args[i+1]
		}
	}
	return ""
}
