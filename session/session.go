// Package session drives one encrypted message exchange per connection: the
// initiator proposes cipher parameters, receives the responder's IV, sends
// one encrypted payload and waits for the delivery confirmation. Each call
// owns its session state exclusively; nothing is shared or reused across
// exchanges.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/cifranet/cifra/observability"
	"github.com/cifranet/cifra/suite"
	"github.com/cifranet/cifra/transport"
	"github.com/cifranet/cifra/wire"
)

// Options configures the initiator side of an exchange.
type Options struct {
	Key       []byte
	SourceID  uint16
	DestID    uint16
	Algorithm suite.Algorithm
	Mode      suite.Mode
	Padding   bool
	Observer  observability.ExchangeObserver
}

// ResponderOptions configures the responder side of an exchange.
type ResponderOptions struct {
	Key      []byte
	Observer observability.ExchangeObserver
}

// Inbound is a successfully received message.
type Inbound struct {
	SourceID  uint16
	DestID    uint16
	Algorithm suite.Algorithm
	Mode      suite.Mode
	Padding   bool
	Plaintext []byte
}

// state is the negotiated parameter set of one exchange. It is created per
// exchange and discarded with it.
type state struct {
	srcID     uint16
	dstID     uint16
	alg       suite.Algorithm
	mode      suite.Mode
	padding   bool
	key       []byte
	iv        []byte
	plaintext []byte
}

// sendConf signals an outcome to the peer. Abort paths call it best-effort:
// the protocol error stays the primary failure even if the stream already
// broke underneath.
func sendConf(ctx context.Context, t transport.Transport, code wire.Code) error {
	return t.Send(ctx, []byte{wire.EncodeConf(code)})
}

// readHeader reads and splits the single header byte of the next message.
func readHeader(ctx context.Context, t transport.Transport) (wire.MsgType, wire.Code, error) {
	b, err := t.Receive(ctx, 1)
	if err != nil {
		return 0, 0, err
	}
	return wire.DecodeHeader(b[0])
}

func observer(obs observability.ExchangeObserver) observability.ExchangeObserver {
	if obs == nil {
		return observability.NoopExchangeObserver
	}
	return obs
}

func observeOutcome(obs observability.ExchangeObserver, role observability.Role, start time.Time, err error) {
	obs.ExchangeLatency(time.Since(start))
	var pe *Error
	switch {
	case err == nil:
		obs.Exchange(role, observability.ResultOK, wire.OK.String())
	case errors.As(err, &pe):
		obs.Exchange(role, observability.ResultProtocol, pe.Code.String())
	default:
		obs.Exchange(role, observability.ResultTransport, "")
	}
}
