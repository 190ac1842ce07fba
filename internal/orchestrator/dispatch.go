package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aristath/storyloop/internal/executor"
	"github.com/aristath/storyloop/internal/logging"
)

// Dispatcher hands a selected story to an executor. The loop only sees
// this interface; session bookkeeping, per-invocation timeouts, and
// circuit breaking all live behind it.
type Dispatcher interface {
	// Name identifies the executor for events and diagnostics.
	Name() string
	// Plan returns the invocation that Dispatch would run, for dry-run
	// reporting.
	Plan(ctx context.Context, req executor.Request) executor.Invocation
	// Dispatch runs the executor for one story. Invocation failures
	// come back as *executor.InvocationError; anything else is an
	// internal fault the loop must not swallow.
	Dispatch(ctx context.Context, req executor.Request) error
}

// SessionStore persists the executor session created for each story so
// later attempts resume the same agent conversation.
type SessionStore interface {
	// Session returns the recorded session id, or empty when none exists.
	Session(ctx context.Context, storyID, executorName string) (string, error)
	SaveSession(ctx context.Context, storyID, executorName, sessionID string) error
}

// ExecDispatcher dispatches stories to a real executor behind a
// circuit breaker and a per-invocation timeout.
type ExecDispatcher struct {
	exec         executor.Executor
	breaker      *gobreaker.CircuitBreaker
	sessions     SessionStore
	instructions string
	timeout      time.Duration
}

// NewExecDispatcher wires an executor with its session store, the
// instruction payload sent on every dispatch, and the per-invocation
// timeout (zero disables the timeout).
func NewExecDispatcher(exec executor.Executor, sessions SessionStore, instructions string, timeout time.Duration) *ExecDispatcher {
	return &ExecDispatcher{
		exec:         exec,
		breaker:      newBreaker(exec.Name()),
		sessions:     sessions,
		instructions: instructions,
		timeout:      timeout,
	}
}

// newBreaker builds the circuit breaker guarding one executor binary.
// Timeouts and cancellations are not counted as failures; the breaker
// exists to catch a binary that crashes instantly on every start.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Default().Warn("circuit breaker state changed",
				"executor", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})
}

func (d *ExecDispatcher) Name() string {
	return d.exec.Name()
}

// Plan enriches the request the same way Dispatch would, so a dry run
// reports the invocation that would really happen.
func (d *ExecDispatcher) Plan(ctx context.Context, req executor.Request) executor.Invocation {
	req.Instructions = d.instructions
	if d.sessions != nil {
		if sid, err := d.sessions.Session(ctx, req.StoryID, d.exec.Name()); err == nil {
			req.SessionID = sid
		}
	}
	return d.exec.Plan(req)
}

// Dispatch invokes the executor for one story through the breaker.
// Session lookup and save failures are logged, never fatal; the agent
// simply starts a fresh session next time.
func (d *ExecDispatcher) Dispatch(ctx context.Context, req executor.Request) error {
	log := logging.FromContext(ctx)

	req.Instructions = d.instructions
	if d.sessions != nil {
		sid, err := d.sessions.Session(ctx, req.StoryID, d.exec.Name())
		if err != nil {
			log.Warn("session lookup failed", "story", req.StoryID, "error", err)
		} else if sid != "" {
			req.SessionID = sid
			log.Debug("resuming executor session", "story", req.StoryID, "session", sid)
		}
	}

	invokeCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := d.breaker.Execute(func() (interface{}, error) {
		return d.exec.Invoke(invokeCtx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &executor.InvocationError{
				Executor: d.exec.Name(),
				StoryID:  req.StoryID,
				Err:      err,
			}
		}
		return err
	}

	res := result.(*executor.Result)
	if d.sessions != nil && res.SessionID != "" && res.SessionID != req.SessionID {
		if err := d.sessions.SaveSession(ctx, req.StoryID, d.exec.Name(), res.SessionID); err != nil {
			log.Warn("saving session failed", "story", req.StoryID, "error", err)
		}
	}
	return nil
}
