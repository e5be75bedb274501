package session

import "time"

// State is the lifecycle state of a remote session.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateConnected      State = "connected"
	StateError          State = "error"
)

// maxTransitions caps the in-memory transition history.
const maxTransitions = 50

// Transition records a single state change.
type Transition struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// StateCallback is invoked after every state change. Callbacks run outside
// the session lock and may call back into the session.
type StateCallback func(Transition)

// canConnect reports whether a new connection attempt may start from s.
func (s State) canConnect() bool {
	return s == StateDisconnected || s == StateError
}
