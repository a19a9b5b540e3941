package solana

import (
	"context"
	"errors"
)

// ErrConnectionLost is reported by WSClient.Err after the socket drops.
var ErrConnectionLost = errors.New("websocket connection lost")

// WSClient defines Solana WebSocket subscription interface.
// A client serves a single connection; callers redial after Done is closed.
type WSClient interface {
	// SubscribeLogs subscribes to logs matching the filter and returns the subscription ID.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (int64, error)

	// Notifications delivers notifications of every subscription.
	Notifications() <-chan LogNotification

	// Done is closed when the connection is lost or closed.
	Done() <-chan struct{}

	// Err returns the reason Done was closed.
	Err() error

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these addresses.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Subscription int64
	Mentions     []string // filter of the subscription that produced it
	Signature    string
	Slot         int64
	Logs         []string
	Err          interface{}
}
