package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport runs the protocol byte stream over websocket binary frames.
// Frame boundaries carry no meaning: incoming frames feed an internal buffer
// that Receive drains byte-exact, so both peers see the same ordered stream
// a TCP connection would give them.
type WSTransport struct {
	c   *websocket.Conn
	buf []byte
}

// NewWS wraps an established websocket connection.
func NewWS(c *websocket.Conn) *WSTransport {
	return &WSTransport{c: c}
}

// DialWS opens a websocket connection to urlStr ("ws://host:port/path").
func DialWS(ctx context.Context, urlStr string) (*WSTransport, error) {
	d := websocket.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		d.HandshakeTimeout = time.Until(deadline)
	}
	c, _, err := d.DialContext(ctx, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionBroken, err)
	}
	return &WSTransport{c: c}, nil
}

// UpgradeWS upgrades an HTTP request to a websocket-backed transport.
func UpgradeWS(w http.ResponseWriter, r *http.Request) (*WSTransport, error) {
	up := websocket.Upgrader{
		// The exchange is point to point; the peer is not a browser.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	c, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionBroken, err)
	}
	return &WSTransport{c: c}, nil
}

func (t *WSTransport) applyDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.c.SetReadDeadline(deadline)
		_ = t.c.SetWriteDeadline(deadline)
	} else {
		_ = t.c.SetReadDeadline(time.Time{})
		_ = t.c.SetWriteDeadline(time.Time{})
	}
}

func (t *WSTransport) Send(ctx context.Context, b []byte) error {
	t.applyDeadline(ctx)
	if err := t.c.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionBroken, err)
	}
	return nil
}

func (t *WSTransport) Receive(ctx context.Context, n int) ([]byte, error) {
	t.applyDeadline(ctx)
	for len(t.buf) < n {
		mt, frame, err := t.c.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionBroken, err)
		}
		if mt != websocket.BinaryMessage {
			return nil, fmt.Errorf("%w: non-binary websocket frame", ErrConnectionBroken)
		}
		t.buf = append(t.buf, frame...)
	}
	out := make([]byte, n)
	copy(out, t.buf[:n])
	t.buf = t.buf[n:]
	return out, nil
}

func (t *WSTransport) Close() error {
	err := t.c.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
