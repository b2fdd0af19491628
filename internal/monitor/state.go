package monitor

// State is the lifecycle state of the broker session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribed
	StateDisconnecting
)

// String returns the lowercase state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// HasSession reports whether the broker has acknowledged the connection.
func (s State) HasSession() bool {
	return s == StateConnected || s == StateSubscribed
}
