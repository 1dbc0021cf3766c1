package domain

// SessionState tracks where a session is in its lifecycle.
// Transitions only move forward.
type SessionState int32

const (
	Disconnected SessionState = iota
	Connecting
	SubscribedAndAnnounced
	Active
	Closing
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case SubscribedAndAnnounced:
		return "SubscribedAndAnnounced"
	case Active:
		return "Active"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// CanSend reports whether outbound messages are accepted in this state.
func (s SessionState) CanSend() bool {
	return s == SubscribedAndAnnounced || s == Active
}
