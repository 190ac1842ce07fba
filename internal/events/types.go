package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	StoryID() string
}

// Topic constants
const (
	TopicRun   = "run"
	TopicStory = "story"
)

// Event type constants
const (
	EventTypeRunStarted       = "run.started"
	EventTypeRunArchived      = "run.archived"
	EventTypeIterationStarted = "run.iteration"
	EventTypeProgressUpdated  = "run.progress"
	EventTypeRunFinished      = "run.finished"
	EventTypeStoryDispatched  = "story.dispatched"
	EventTypeExecutorFinished = "story.finished"
	EventTypeDryRunPlanned    = "story.planned"
)

// Run outcome labels carried by RunFinishedEvent.
const (
	OutcomeCompleted     = "completed"
	OutcomeBlocked       = "blocked"
	OutcomeEmptyBacklog  = "empty-backlog"
	OutcomeMaxIterations = "max-iterations"
	OutcomeCanceled      = "canceled"
	OutcomeDryRun        = "dry-run"
	OutcomeFailed        = "failed"
)

// RunStartedEvent is published once before the first iteration.
type RunStartedEvent struct {
	Identity      string
	StatePath     string
	Executor      string
	MaxIterations int
	Timestamp     time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) StoryID() string   { return "" }

// RunArchivedEvent is published when a prior run's state was snapshotted.
type RunArchivedEvent struct {
	Dir       string
	From      string
	To        string
	Timestamp time.Time
}

func (e RunArchivedEvent) EventType() string { return EventTypeRunArchived }
func (e RunArchivedEvent) StoryID() string   { return "" }

// IterationStartedEvent is published at the top of every iteration.
type IterationStartedEvent struct {
	Iteration     int
	MaxIterations int
	Timestamp     time.Time
}

func (e IterationStartedEvent) EventType() string { return EventTypeIterationStarted }
func (e IterationStartedEvent) StoryID() string   { return "" }

// ProgressUpdatedEvent is published after the backlog is reloaded.
type ProgressUpdatedEvent struct {
	Total     int
	Done      int
	Percent   int
	Timestamp time.Time
}

func (e ProgressUpdatedEvent) EventType() string { return EventTypeProgressUpdated }
func (e ProgressUpdatedEvent) StoryID() string   { return "" }

// StoryDispatchedEvent is published when a story is handed to the executor.
type StoryDispatchedEvent struct {
	Iteration int
	ID        string
	Title     string
	Executor  string
	Timestamp time.Time
}

func (e StoryDispatchedEvent) EventType() string { return EventTypeStoryDispatched }
func (e StoryDispatchedEvent) StoryID() string   { return e.ID }

// ExecutorFinishedEvent is published when the executor call returns,
// successfully or not. Err is nil on a clean invocation.
type ExecutorFinishedEvent struct {
	Iteration int
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e ExecutorFinishedEvent) EventType() string { return EventTypeExecutorFinished }
func (e ExecutorFinishedEvent) StoryID() string   { return e.ID }

// DryRunPlannedEvent is published instead of dispatching when dry-run is set.
type DryRunPlannedEvent struct {
	ID        string
	Title     string
	Binary    string
	Args      []string
	Timestamp time.Time
}

func (e DryRunPlannedEvent) EventType() string { return EventTypeDryRunPlanned }
func (e DryRunPlannedEvent) StoryID() string   { return e.ID }

// RunFinishedEvent is published once when the loop terminates.
type RunFinishedEvent struct {
	Outcome    string
	Iterations int
	Err        error
	Timestamp  time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) StoryID() string   { return "" }
