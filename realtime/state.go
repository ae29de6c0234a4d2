package realtime

// ConnectionState represents the lifecycle of one push connection.
type ConnectionState int

const (
	// StateDisconnected means no connection exists and none is being opened.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a connection is being established.
	StateConnecting

	// StateOpen means the connection is live and delivering frames.
	StateOpen

	// StateErrored means the connection closed unexpectedly; a reconnect may be pending.
	StateErrored
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Audience selects one of the two SSE channels.
type Audience int

const (
	AudienceAdmin Audience = iota
	AudienceUser
	// AudienceBroadcast labels state events of the WebSocket client.
	AudienceBroadcast
)

func (a Audience) String() string {
	switch a {
	case AudienceAdmin:
		return "admin"
	case AudienceUser:
		return "user"
	case AudienceBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// StateEvent represents a state change event.
type StateEvent struct {
	Audience Audience
	OldState ConnectionState
	NewState ConnectionState
	Error    error // Optional error that caused the state change
}
