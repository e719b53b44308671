package orchestrator

// State is a position in the run state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateStreaming
	StateAwaitingTools
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateStreaming:
		return "STREAMING"
	case StateAwaitingTools:
		return "AWAITING_TOOLS"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
