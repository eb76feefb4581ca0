package session

// State is the connection state of a session. A session instance walks this
// machine exactly once: Disconnected is terminal, a new start creates a new
// Session and never reuses a dead one.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateClosing
	StateError
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateStreaming:
		return "Streaming"
	case StateClosing:
		return "Closing"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// legalTransitions encodes the session state machine
var legalTransitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateStreaming, StateClosing, StateError},
	StateStreaming:    {StateClosing, StateError},
	StateClosing:      {StateDisconnected},
	StateError:        {StateDisconnected},
}

// CanTransition reports whether moving from s to next is legal
func (s State) CanTransition(next State) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
