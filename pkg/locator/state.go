package locator

// ResolveState represents the progress of a visibility wait
type ResolveState int

const (
	StatePolling   ResolveState = iota // Still evaluating snapshots
	StateSatisfied                     // Visibility condition met
	StateTimedOut                      // Deadline elapsed before the condition held
)

// String returns the string representation of ResolveState
func (s ResolveState) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSatisfied:
		return "satisfied"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state is a final state
func (s ResolveState) IsTerminal() bool {
	return s == StateSatisfied || s == StateTimedOut
}
