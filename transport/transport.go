// Package transport supplies the reliable ordered byte stream the exchange
// protocol runs over. Implementations must deliver all-or-nothing: Send
// pushes every byte or fails, Receive returns exactly n bytes or fails.
package transport

import (
	"context"
	"errors"
)

// ErrConnectionBroken reports a stream that closed or failed mid-exchange.
// It is fatal for the exchange: no protocol message follows it.
var ErrConnectionBroken = errors.New("transport: connection broken")

// Transport is a blocking byte stream between exactly two peers.
type Transport interface {
	// Send writes the whole buffer, retrying partial writes internally.
	Send(ctx context.Context, b []byte) error
	// Receive blocks until exactly n bytes arrived, accumulating partial
	// reads internally.
	Receive(ctx context.Context, n int) ([]byte, error)
	Close() error
}
