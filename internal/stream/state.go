package stream

import (
	"fmt"
	"time"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Status is a point-in-time view of the connection.
type Status struct {
	State       State         `json:"-"`
	StateName   string        `json:"state"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	RetryIn     time.Duration `json:"retry_in"`
	LastError   string        `json:"last_error,omitempty"`
}

// String renders the human-readable connection status.
func (s Status) String() string {
	switch s.State {
	case StateConnecting:
		return "Connecting..."
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return fmt.Sprintf("Reconnecting in %s (attempt %d/%d)", s.RetryIn, s.Attempts, s.MaxAttempts)
	case StateFailed:
		return "Connection failed: reconnect failed"
	default:
		return "Disconnected"
	}
}
