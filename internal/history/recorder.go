package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/aristath/storyloop/internal/events"
	"github.com/aristath/storyloop/internal/logging"
)

// Recorder turns loop events into history rows. Writes are best
// effort: a failed insert is logged and the run carries on, so a
// read-only or locked database never stops the scheduler.
type Recorder struct {
	store *Store
	runID string
	done  chan struct{}
}

// NewRecorder creates a Recorder with a fresh run id.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{
		store: store,
		runID: uuid.NewString(),
		done:  make(chan struct{}),
	}
}

// RunID returns the id the recorder writes rows under.
func (r *Recorder) RunID() string {
	return r.runID
}

// Run consumes events until ch closes. Pass a context that outlives
// the loop's so the final events are still written after cancellation.
func (r *Recorder) Run(ctx context.Context, ch <-chan events.Event) {
	defer close(r.done)
	for e := range ch {
		r.record(ctx, e)
	}
}

// Wait blocks until Run has drained its channel.
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) record(ctx context.Context, e events.Event) {
	var err error
	switch ev := e.(type) {
	case events.RunStartedEvent:
		err = r.store.StartRun(ctx, r.runID, ev.Identity, ev.Executor)
	case events.ExecutorFinishedEvent:
		err = r.store.RecordAttempt(ctx, r.runID, ev.Iteration, ev.ID, ev.Err, ev.Duration)
	case events.RunFinishedEvent:
		err = r.store.FinishRun(ctx, r.runID, ev.Outcome, ev.Iterations, ev.Err)
	default:
		return
	}
	if err != nil {
		logging.FromContext(ctx).Warn("recording history failed",
			"event", e.EventType(), "error", err)
	}
}
