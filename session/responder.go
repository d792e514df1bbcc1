package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/cifranet/cifra/crypto/blockcipher"
	"github.com/cifranet/cifra/observability"
	"github.com/cifranet/cifra/transport"
	"github.com/cifranet/cifra/wire"
)

// Respond runs the receiving side of one exchange: ParReq in, ParConf with a
// fresh IV out, encrypted Dados in, final Conf out. On success the decrypted
// message and the negotiated parameters are returned. Protocol failures
// return *Error; a broken stream returns an error matching
// transport.ErrConnectionBroken.
func Respond(ctx context.Context, t transport.Transport, opts ResponderOptions) (*Inbound, error) {
	obs := observer(opts.Observer)
	start := time.Now()
	in, err := respond(ctx, t, opts)
	observeOutcome(obs, observability.RoleResponder, start, err)
	if err == nil {
		obs.PayloadBytes(len(in.Plaintext))
	}
	return in, err
}

func respond(ctx context.Context, t transport.Transport, opts ResponderOptions) (*Inbound, error) {
	mt, _, err := readHeader(ctx, t)
	if err != nil {
		if headerDecodeFailed(err) {
			_ = sendConf(ctx, t, wire.Internal)
			return nil, protoErr(RoleResponder, StageParReq, wire.UnexpectedType, err)
		}
		return nil, fmt.Errorf("responder %s: %w", StageParReq, err)
	}
	if mt != wire.TypeParReq {
		_ = sendConf(ctx, t, wire.Internal)
		return nil, protoErr(RoleResponder, StageParReq, wire.UnexpectedType,
			fmt.Errorf("got %s, want %s", mt, wire.TypeParReq))
	}

	body, err := t.Receive(ctx, wire.ParReqLen)
	if err != nil {
		return nil, fmt.Errorf("responder %s: %w", StageParReq, err)
	}
	req, err := wire.DecodeParReq(body)
	if err != nil {
		// Rejection is signaled with a plain Conf; this side does not
		// advertise a capability list.
		_ = sendConf(ctx, t, wire.Internal)
		return nil, protoErr(RoleResponder, StageParReq, wire.NotSupportedParams, err)
	}

	s := state{
		srcID:   req.SourceID,
		dstID:   req.DestID,
		alg:     req.Algorithm,
		mode:    req.Mode,
		padding: req.Padding,
		key:     opts.Key,
	}

	iv, err := generateIV()
	if err != nil {
		// The initiator is already blocked waiting for ParConf.
		_ = sendConf(ctx, t, wire.Internal)
		return nil, protoErr(RoleResponder, StageParConf, wire.Internal, err)
	}
	s.iv = iv
	confBody, err := wire.EncodeParConf(s.iv)
	if err != nil {
		_ = sendConf(ctx, t, wire.Internal)
		return nil, protoErr(RoleResponder, StageParConf, wire.Internal, err)
	}
	frame := append([]byte{wire.EncodeHeader(wire.TypeParConf, wire.OK)}, confBody...)
	if err := t.Send(ctx, frame); err != nil {
		return nil, fmt.Errorf("responder %s: %w", StageParConf, err)
	}

	mt, _, err = readHeader(ctx, t)
	if err != nil {
		if headerDecodeFailed(err) {
			return nil, protoErr(RoleResponder, StageDados, wire.UnexpectedType, err)
		}
		return nil, fmt.Errorf("responder %s: %w", StageDados, err)
	}
	if mt != wire.TypeDados {
		// The peer aborted or desynchronized; report locally without
		// pushing more bytes at it.
		return nil, protoErr(RoleResponder, StageDados, wire.UnexpectedType,
			fmt.Errorf("got %s, want %s", mt, wire.TypeDados))
	}

	prefix, err := t.Receive(ctx, 2)
	if err != nil {
		return nil, fmt.Errorf("responder %s: %w", StageDados, err)
	}
	size, err := wire.DecodeDadosLen(prefix)
	if err != nil {
		_ = sendConf(ctx, t, wire.DataError)
		return nil, protoErr(RoleResponder, StageDados, wire.DataError, err)
	}
	ciphertext, err := t.Receive(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("responder %s: %w", StageDados, err)
	}

	s.plaintext, err = blockcipher.Decrypt(ciphertext, s.key, s.iv, s.alg, s.mode, s.padding)
	if err != nil {
		_ = sendConf(ctx, t, wire.DataError)
		return nil, protoErr(RoleResponder, StageDados, wire.DataError, err)
	}

	if err := sendConf(ctx, t, wire.OK); err != nil {
		return nil, fmt.Errorf("responder %s: %w", StageConf, err)
	}
	return &Inbound{
		SourceID:  s.srcID,
		DestID:    s.dstID,
		Algorithm: s.alg,
		Mode:      s.mode,
		Padding:   s.padding,
		Plaintext: s.plaintext,
	}, nil
}

// generateIV draws a fresh 16-byte IV. An all-zero IV is a protocol
// violation and is redrawn.
func generateIV() ([]byte, error) {
	iv := make([]byte, wire.IVLen)
	for {
		if _, err := rand.Read(iv); err != nil {
			return nil, err
		}
		for _, b := range iv {
			if b != 0 {
				return iv, nil
			}
		}
	}
}
