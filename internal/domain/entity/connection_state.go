package entity

// ConnectionState is the lifecycle state of the broker connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateOpen
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AllConnectionStates lists every state, in declaration order.
func AllConnectionStates() []ConnectionState {
	return []ConnectionState{StateDisconnected, StateConnecting, StateOpen, StateFailed}
}
