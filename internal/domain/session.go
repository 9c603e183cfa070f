package domain

// SessionRole is fixed for the session's duration once chosen. The
// Initiator creates a session and waits for a peer; the Joiner dials
// the Initiator's identity. Once connected the data protocol is
// symmetric.
type SessionRole string

const (
	RoleNone      SessionRole = ""
	RoleInitiator SessionRole = "initiator"
	RoleJoiner    SessionRole = "joiner"
)

// ConnectionState tracks the session's transport lifecycle. Exactly one
// instance per session; transitions are driven only by transport events,
// never by application messages.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session can never reach Connected again.
// Disconnection ends the session; a failed connection attempt may be
// retried with a fresh Join.
func (s ConnectionState) Terminal() bool {
	return s == StateDisconnected
}
