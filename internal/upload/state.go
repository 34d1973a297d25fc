package upload

// State is the lifecycle state of an Item within the current stage.
type State int

const (
	// StatePending means the item is waiting for the stage transition.
	StatePending State = iota
	// StateTransitioning means the item's operation is in flight and holds a slot.
	StateTransitioning
	// StateComplete means the operation finished successfully.
	StateComplete
	// StateError means the operation failed; LastError holds the cause.
	StateError
	// StateAborted means the item was cancelled by the user.
	StateAborted
)

// String returns the lowercase state name used in logs and JSON output.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateTransitioning:
		return "transitioning"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s counts as a settlement for the current stage.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateError || s == StateAborted
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
