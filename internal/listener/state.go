package listener

import "time"

// State is the connection state of the push listener.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateDisabled
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDisabled:
		return "disabled"
	default:
		return "disconnected"
	}
}

// Backoff returns the delay before reconnect attempt n (1-based): base*n, capped at maxDelay.
// A non-positive maxDelay disables the cap.
func Backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	d := base * time.Duration(attempt)
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}
