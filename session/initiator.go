package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cifranet/cifra/crypto/blockcipher"
	"github.com/cifranet/cifra/observability"
	"github.com/cifranet/cifra/suite"
	"github.com/cifranet/cifra/transport"
	"github.com/cifranet/cifra/wire"
)

// Initiate runs the sending side of one exchange: ParReq out, ParConf (or a
// Lista rejection) in, encrypted Dados out, final Conf in. A nil return
// means the responder confirmed delivery with OK. Protocol failures return
// *Error; a broken stream returns an error matching
// transport.ErrConnectionBroken.
func Initiate(ctx context.Context, t transport.Transport, opts Options, plaintext []byte) error {
	obs := observer(opts.Observer)
	start := time.Now()
	err := initiate(ctx, t, opts, plaintext)
	observeOutcome(obs, observability.RoleInitiator, start, err)
	if err == nil {
		obs.PayloadBytes(len(plaintext))
	}
	return err
}

// headerDecodeFailed reports a malformed header byte, as opposed to a
// transport failure while reading it.
func headerDecodeFailed(err error) bool {
	return errors.Is(err, wire.ErrInvalidType) || errors.Is(err, wire.ErrInvalidCode)
}

func initiate(ctx context.Context, t transport.Transport, opts Options, plaintext []byte) error {
	// Local validation happens before any byte hits the wire.
	if len(plaintext) > wire.MaxPlaintextLen {
		return protoErr(RoleInitiator, StageValidate, wire.Internal,
			fmt.Errorf("plaintext %d exceeds %d bytes", len(plaintext), wire.MaxPlaintextLen))
	}
	if _, err := suite.AlgorithmByCode(uint8(opts.Algorithm)); err != nil {
		return protoErr(RoleInitiator, StageValidate, wire.NotSupportedParams, err)
	}
	if _, err := suite.ModeByCode(uint8(opts.Mode)); err != nil {
		return protoErr(RoleInitiator, StageValidate, wire.NotSupportedParams, err)
	}

	s := state{
		srcID:     opts.SourceID,
		dstID:     opts.DestID,
		alg:       opts.Algorithm,
		mode:      opts.Mode,
		padding:   opts.Padding,
		key:       opts.Key,
		plaintext: plaintext,
	}

	frame := append([]byte{wire.EncodeHeader(wire.TypeParReq, wire.OK)}, wire.EncodeParReq(wire.ParReq{
		SourceID:  s.srcID,
		DestID:    s.dstID,
		Algorithm: s.alg,
		Mode:      s.mode,
		Padding:   s.padding,
	})...)
	if err := t.Send(ctx, frame); err != nil {
		return fmt.Errorf("initiator %s: %w", StageParReq, err)
	}

	mt, code, err := readHeader(ctx, t)
	if err != nil {
		if headerDecodeFailed(err) {
			_ = sendConf(ctx, t, wire.Internal)
			return protoErr(RoleInitiator, StageParConf, wire.UnexpectedType, err)
		}
		return fmt.Errorf("initiator %s: %w", StageParConf, err)
	}
	switch mt {
	case wire.TypeParConf:
		body, err := t.Receive(ctx, wire.IVLen)
		if err != nil {
			return fmt.Errorf("initiator %s: %w", StageParConf, err)
		}
		iv, err := wire.DecodeParConf(body)
		if err != nil {
			_ = sendConf(ctx, t, wire.Internal)
			return protoErr(RoleInitiator, StageParConf, wire.NullIV, err)
		}
		s.iv = iv
	case wire.TypeLista:
		// A capability list means the request was rejected; nothing further
		// is sent on this connection.
		sizeb, err := t.Receive(ctx, 1)
		if err != nil {
			return fmt.Errorf("initiator %s: %w", StageParConf, err)
		}
		body, err := t.Receive(ctx, int(sizeb[0]))
		if err != nil {
			return fmt.Errorf("initiator %s: %w", StageParConf, err)
		}
		entries, err := wire.DecodeLista(body)
		if err != nil {
			return protoErr(RoleInitiator, StageParConf, wire.NotSupportedParams, err)
		}
		rejection := code
		if rejection == wire.OK {
			rejection = wire.NotSupportedParams
		}
		return &Error{
			Role:      RoleInitiator,
			Stage:     StageParConf,
			Code:      rejection,
			Supported: entries,
			Err:       fmt.Errorf("parameters rejected, %d combinations advertised", len(entries)),
		}
	default:
		_ = sendConf(ctx, t, wire.Internal)
		return protoErr(RoleInitiator, StageParConf, wire.UnexpectedType,
			fmt.Errorf("got %s, want %s or %s", mt, wire.TypeParConf, wire.TypeLista))
	}

	ciphertext, err := blockcipher.Encrypt(s.plaintext, s.key, s.iv, s.alg, s.mode, s.padding)
	if err != nil {
		// The responder is already blocked on the payload read.
		_ = sendConf(ctx, t, wire.Internal)
		return protoErr(RoleInitiator, StageEncrypt, wire.Internal, err)
	}
	body, err := wire.EncodeDados(ciphertext)
	if err != nil {
		_ = sendConf(ctx, t, wire.Internal)
		return protoErr(RoleInitiator, StageEncrypt, wire.Internal, err)
	}
	frame = append([]byte{wire.EncodeHeader(wire.TypeDados, wire.OK)}, body...)
	if err := t.Send(ctx, frame); err != nil {
		return fmt.Errorf("initiator %s: %w", StageDados, err)
	}

	// The responder already sent its Conf at this point; a mismatch is
	// reported locally only.
	mt, code, err = readHeader(ctx, t)
	if err != nil {
		if headerDecodeFailed(err) {
			return protoErr(RoleInitiator, StageConf, wire.UnexpectedType, err)
		}
		return fmt.Errorf("initiator %s: %w", StageConf, err)
	}
	if mt != wire.TypeConf {
		return protoErr(RoleInitiator, StageConf, wire.UnexpectedType,
			fmt.Errorf("got %s, want %s", mt, wire.TypeConf))
	}
	if code != wire.OK {
		return protoErr(RoleInitiator, StageConf, code, nil)
	}
	return nil
}
