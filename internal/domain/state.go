package domain

// ConnState is the lifecycle state of the primary bridge connection.
type ConnState int

const (
	ConnIdle ConnState = iota
	ConnConnecting
	ConnConnected
	ConnDisconnected
	ConnFailed
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the connection indicator shown to the visitor.
type Status string

const (
	StatusConnecting  Status = "connecting"
	StatusConnected   Status = "connected"
	StatusUnavailable Status = "unavailable"
)
