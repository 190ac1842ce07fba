package orchestrator

// State is the scheduling loop's position in its lifecycle. Transitions
// are logged at debug level; the loop itself drives them strictly in
// sequence, one dispatch per iteration.
type State int

const (
	StateIdle State = iota
	StateIterationStart
	StateSelecting
	StateDispatching
	StateReconciling
	StateCompleted
	StateBlocked
	StateMaxIterations
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIterationStart:
		return "iteration-start"
	case StateSelecting:
		return "selecting"
	case StateDispatching:
		return "dispatching"
	case StateReconciling:
		return "reconciling"
	case StateCompleted:
		return "completed"
	case StateBlocked:
		return "blocked"
	case StateMaxIterations:
		return "max-iterations"
	default:
		return "unknown"
	}
}
