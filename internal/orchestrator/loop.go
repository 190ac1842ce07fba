// Package orchestrator runs the scheduling loop: reload the backlog,
// select the next eligible story, dispatch it to the executor, pause,
// repeat. The executor's own success or failure is never trusted;
// progress is only ever observed by re-reading the persisted backlog
// on the next iteration.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/storyloop/internal/backlog"
	"github.com/aristath/storyloop/internal/events"
	"github.com/aristath/storyloop/internal/executor"
	"github.com/aristath/storyloop/internal/logging"
	"github.com/aristath/storyloop/internal/progress"
	"github.com/aristath/storyloop/internal/scheduler"
)

// DefaultMaxIterations bounds a run when no explicit limit is given.
const DefaultMaxIterations = 10

// ErrEmptyBacklog reports a state file that loaded cleanly but holds
// zero items. Distinct from a blocked backlog.
var ErrEmptyBacklog = errors.New("backlog contains no items")

// MaxIterationsError reports an exhausted iteration budget with work
// still incomplete.
type MaxIterationsError struct {
	Limit int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("backlog not complete after %d iteration(s)", e.Limit)
}

// Options configure one run of the loop.
type Options struct {
	// StatePath is the backlog file, reloaded at the top of every
	// iteration.
	StatePath string
	// MaxIterations bounds the run; DefaultMaxIterations when zero.
	MaxIterations int
	// Cooldown is the base pause between iterations.
	Cooldown time.Duration
	// DryRun reports the next invocation instead of dispatching it.
	DryRun bool
}

// Loop is the sequential scheduling loop. One story is dispatched per
// iteration; the backlog is discarded and reloaded every iteration so
// mutations made by the executor are observed.
type Loop struct {
	opts       Options
	dispatcher Dispatcher
	bus        *events.Bus
	cooldown   *Cooldown
	state      State
	iterations int
}

// New builds a Loop. The bus may be nil when nothing listens.
func New(opts Options, dispatcher Dispatcher, bus *events.Bus) *Loop {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Loop{
		opts:       opts,
		dispatcher: dispatcher,
		bus:        bus,
		cooldown:   NewCooldown(opts.Cooldown),
		state:      StateIdle,
	}
}

// Run drives the loop until the backlog completes, a fatal condition
// stops it, or the iteration budget runs out. The returned error is
// nil only on full completion or after a dry-run report.
func (l *Loop) Run(ctx context.Context) error {
	err := l.run(ctx)

	l.publish(events.TopicRun, events.RunFinishedEvent{
		Outcome:    l.outcome(err),
		Iterations: l.iterations,
		Err:        err,
		Timestamp:  time.Now(),
	})
	return err
}

func (l *Loop) run(ctx context.Context) error {
	log := logging.FromContext(ctx)

	for iteration := 1; iteration <= l.opts.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.iterations = iteration

		l.transition(ctx, StateIterationStart)
		l.publish(events.TopicRun, events.IterationStartedEvent{
			Iteration:     iteration,
			MaxIterations: l.opts.MaxIterations,
			Timestamp:     time.Now(),
		})

		set, err := backlog.Load(l.opts.StatePath)
		if err != nil {
			return err
		}

		total, done := set.Counts()
		if total == 0 {
			return ErrEmptyBacklog
		}
		l.publish(events.TopicRun, events.ProgressUpdatedEvent{
			Total:     total,
			Done:      done,
			Percent:   progress.Percent(done, total),
			Timestamp: time.Now(),
		})

		if done == total {
			l.transition(ctx, StateCompleted)
			return nil
		}

		l.transition(ctx, StateSelecting)
		item, ok := scheduler.NextEligible(set)
		if !ok {
			l.transition(ctx, StateBlocked)
			return scheduler.NewBlockedError(set)
		}

		req := executor.Request{StoryID: item.ID, Title: item.Title}

		if l.opts.DryRun {
			inv := l.dispatcher.Plan(ctx, req)
			l.publish(events.TopicStory, events.DryRunPlannedEvent{
				ID:        item.ID,
				Title:     item.Title,
				Binary:    inv.Binary,
				Args:      inv.Args,
				Timestamp: time.Now(),
			})
			return nil
		}

		l.transition(ctx, StateDispatching)
		l.publish(events.TopicStory, events.StoryDispatchedEvent{
			Iteration: iteration,
			ID:        item.ID,
			Title:     item.Title,
			Executor:  l.dispatcher.Name(),
			Timestamp: time.Now(),
		})

		start := time.Now()
		dispatchErr := l.dispatcher.Dispatch(ctx, req)
		l.publish(events.TopicStory, events.ExecutorFinishedEvent{
			Iteration: iteration,
			ID:        item.ID,
			Err:       dispatchErr,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})

		if dispatchErr != nil {
			var invErr *executor.InvocationError
			if !errors.As(dispatchErr, &invErr) {
				return dispatchErr
			}
			// A failed attempt is retried by simply looping again; the
			// iteration budget is the only limit on retries.
			log.Warn("executor invocation failed, continuing",
				"story", item.ID, "iteration", iteration, "error", invErr)
		}
		l.cooldown.Observe(dispatchErr)

		// A dispatch cut short by cancellation must not be mistaken for
		// an exhausted budget.
		if err := ctx.Err(); err != nil {
			return err
		}

		if iteration == l.opts.MaxIterations {
			break
		}

		l.transition(ctx, StateReconciling)
		if err := l.cooldown.Wait(ctx); err != nil {
			return err
		}
	}

	l.transition(ctx, StateMaxIterations)
	return &MaxIterationsError{Limit: l.opts.MaxIterations}
}

func (l *Loop) transition(ctx context.Context, next State) {
	if l.state == next {
		return
	}
	logging.FromContext(ctx).Debug("loop state", "from", l.state.String(), "to", next.String())
	l.state = next
}

func (l *Loop) publish(topic string, e events.Event) {
	if l.bus != nil {
		l.bus.Publish(topic, e)
	}
}

// outcome classifies how the run ended for the finish event.
func (l *Loop) outcome(err error) string {
	if err == nil {
		if l.state == StateCompleted {
			return events.OutcomeCompleted
		}
		return events.OutcomeDryRun
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return events.OutcomeCanceled
	}
	if errors.Is(err, ErrEmptyBacklog) {
		return events.OutcomeEmptyBacklog
	}
	var blocked *scheduler.BlockedError
	if errors.As(err, &blocked) {
		return events.OutcomeBlocked
	}
	var maxed *MaxIterationsError
	if errors.As(err, &maxed) {
		return events.OutcomeMaxIterations
	}
	return events.OutcomeFailed
}
