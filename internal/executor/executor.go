package executor

import (
	"context"
	"fmt"
)

// Names of the known executor integrations.
const (
	NameClaude = "claude"
	NameCodex  = "codex"
	NameGoose  = "goose"
)

// Executor integrates one external coding agent CLI.
type Executor interface {
	// Name returns the integration name.
	Name() string

	// Plan resolves the exact invocation for a request without
	// running it. Used for dry runs and diagnostics.
	Plan(req Request) Invocation

	// Invoke runs the agent once for the request. Failures of the
	// invocation itself are reported as *InvocationError.
	Invoke(ctx context.Context, req Request) (*Result, error)

	// Close releases any resources held by the integration.
	Close() error
}

// New selects the executor integration for cfg.Type.
func New(cfg Config, pm *ProcessManager) (Executor, error) {
	switch cfg.Type {
	case NameClaude:
		return NewClaude(cfg, pm), nil
	case NameCodex:
		return NewCodex(cfg, pm), nil
	case NameGoose:
		return NewGoose(cfg, pm), nil
	default:
		return nil, fmt.Errorf("unknown executor %q (known: %s, %s, %s)", cfg.Type, NameClaude, NameCodex, NameGoose)
	}
}

// directive is the per-story part of the prompt. The standing
// instructions arrive separately as the opaque payload.
func directive(req Request) string {
	return fmt.Sprintf("Work on exactly one story: %s (%s).", req.StoryID, req.Title)
}
