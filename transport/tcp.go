package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// StreamTransport adapts a net.Conn (TCP, unix socket, net.Pipe in tests) to
// the Transport contract. Context deadlines map onto connection deadlines.
type StreamTransport struct {
	conn net.Conn
}

// NewStream wraps an established connection.
func NewStream(conn net.Conn) *StreamTransport {
	return &StreamTransport{conn: conn}
}

// Dial connects to a TCP peer.
func Dial(ctx context.Context, addr string) (*StreamTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionBroken, err)
	}
	return &StreamTransport{conn: conn}, nil
}

func (t *StreamTransport) applyDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetDeadline(deadline)
	} else {
		_ = t.conn.SetDeadline(time.Time{})
	}
}

func (t *StreamTransport) Send(ctx context.Context, b []byte) error {
	t.applyDeadline(ctx)
	for len(b) > 0 {
		n, err := t.conn.Write(b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionBroken, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: zero-byte write", ErrConnectionBroken)
		}
		b = b[n:]
	}
	return nil
}

func (t *StreamTransport) Receive(ctx context.Context, n int) ([]byte, error) {
	t.applyDeadline(ctx)
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionBroken, err)
	}
	return buf, nil
}

func (t *StreamTransport) Close() error {
	return t.conn.Close()
}
