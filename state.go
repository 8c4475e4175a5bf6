package relink

// ConnectionState is the lifecycle state of a Manager.
type ConnectionState int

const (
	// StateIdle means there is no connection and no reconnect pending. Start is only accepted here.
	StateIdle ConnectionState = iota
	// StateConnecting means a transport connection has been requested and has not opened yet.
	StateConnecting
	// StateConnected means the transport reported the connection as open.
	StateConnected
	// StateReconnectScheduled means the last connection failed and a reconnect is waiting on its delay.
	StateReconnectScheduled
	// StateStopped is terminal.
	StateStopped
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectScheduled:
		return "reconnect_scheduled"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StateEvent describes a single state transition.
type StateEvent struct {
	From ConnectionState
	To   ConnectionState
	// Err is the transport error that caused the transition, if any.
	Err error
}
