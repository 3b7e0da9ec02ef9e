package target

// State represents the lifecycle state of a Target.
type State int

const (
	// StateInitialized means the target is created but not started.
	StateInitialized State = iota

	// StateRunning means the portal accepts connections.
	StateRunning

	// StateStopped means the target has been shut down.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
