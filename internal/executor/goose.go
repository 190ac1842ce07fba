package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Goose drives the Goose CLI, which fronts local LLM providers via
// --provider and --model. Sessions are named; a story with a prior
// session resumes it by name.
type Goose struct {
	workDir  string
	model    string
	provider string
	pm       *ProcessManager
}

// gooseResult is the JSON shape of goose output. Goose's JSON format
// is loosely documented; unknown fields are ignored.
type gooseResult struct {
	Content string `json:"content"`
}

// NewGoose creates the Goose integration.
func NewGoose(cfg Config, pm *ProcessManager) *Goose {
	return &Goose{
		workDir:  cfg.WorkDir,
		model:    cfg.Model,
		provider: cfg.Provider,
		pm:       pm,
	}
}

// Name returns "goose".
func (g *Goose) Name() string {
	return NameGoose
}

// Plan builds the goose invocation for req. A fresh story gets a
// generated session name; a story with one resumes it.
func (g *Goose) Plan(req Request) Invocation {
	prompt := directive(req)
	if req.Instructions != "" {
		prompt += "\n\n" + req.Instructions
	}

	args := []string{"run", "--text", prompt, "--output-format", "json"}

	if req.SessionID != "" {
		args = append(args, "--name", req.SessionID, "--resume")
	} else {
		args = append(args, "--name", "storyloop-"+uuid.NewString()[:8])
	}

	if g.provider != "" {
		args = append(args, "--provider", g.provider)
	}
	if g.model != "" {
		args = append(args, "--model", g.model)
	}

	return Invocation{
		Binary: "goose",
		Args:   args,
		Dir:    g.workDir,
	}
}

// Invoke runs the agent once. Goose output parses as JSON when it can;
// otherwise the raw text is carried through, since older goose builds
// ignore --output-format.
func (g *Goose) Invoke(ctx context.Context, req Request) (*Result, error) {
	inv := g.Plan(req)

	stdout, stderr, err := run(ctx, inv, g.pm)
	if err != nil {
		return nil, &InvocationError{Executor: NameGoose, StoryID: req.StoryID, Err: err}
	}

	session := nameFromArgs(inv.Args)

	output, parseErr := parseGooseOutput(stdout)
	if parseErr != nil {
		output = string(stdout)
		if len(stderr) > 0 {
			output += "\n[stderr]: " + string(stderr)
		}
	}

	return &Result{Output: output, SessionID: session}, nil
}

// Close is a no-op for the subprocess-per-invocation model.
func (g *Goose) Close() error {
	return nil
}

// parseGooseOutput tries a single JSON object first, then
// newline-delimited JSON, joining any content fields found.
func parseGooseOutput(data []byte) (string, error) {
	var gr gooseResult
	if err := json.Unmarshal(data, &gr); err == nil {
		return gr.Content, nil
	}

	var contents []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var lineResult gooseResult
		if err := json.Unmarshal([]byte(line), &lineResult); err == nil && lineResult.Content != "" {
			contents = append(contents, lineResult.Content)
		}
	}

	if len(contents) > 0 {
		return strings.Join(contents, "\n"), nil
	}
	return "", fmt.Errorf("goose output is not JSON")
}

// nameFromArgs recovers the session name an invocation carried.
func nameFromArgs(args []string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--name" {
			return args[i+1]
		}
	}
	return ""
}
