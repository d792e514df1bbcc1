package session_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/cifranet/cifra/session"
	"github.com/cifranet/cifra/suite"
	"github.com/cifranet/cifra/transport"
	"github.com/cifranet/cifra/wire"
)

// scriptedTransport feeds a canned byte stream to one state machine and
// records every frame it sends.
type scriptedTransport struct {
	in   bytes.Buffer
	sent [][]byte
	ops  int
}

func (s *scriptedTransport) Send(_ context.Context, b []byte) error {
	s.ops++
	s.sent = append(s.sent, append([]byte(nil), b...))
	return nil
}

func (s *scriptedTransport) Receive(_ context.Context, n int) ([]byte, error) {
	s.ops++
	if s.in.Len() < n {
		return nil, transport.ErrConnectionBroken
	}
	buf := make([]byte, n)
	_, _ = s.in.Read(buf)
	return buf, nil
}

func (s *scriptedTransport) Close() error { return nil }

func (s *scriptedTransport) feed(b ...byte) { s.in.Write(b) }

func runExchange(t *testing.T, opts session.Options, key []byte, plaintext []byte) (*session.Inbound, error, error) {
	t.Helper()
	ic, rc := net.Pipe()
	defer ic.Close()
	defer rc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type respResult struct {
		in  *session.Inbound
		err error
	}
	respCh := make(chan respResult, 1)
	go func() {
		in, err := session.Respond(ctx, transport.NewStream(rc), session.ResponderOptions{Key: key})
		respCh <- respResult{in, err}
	}()

	initErr := session.Initiate(ctx, transport.NewStream(ic), opts, plaintext)
	resp := <-respCh
	return resp.in, initErr, resp.err
}

func TestExchangeAES128ECBNoPadding(t *testing.T) {
	key := []byte("chave 1 de teste")
	// ECB without padding needs block-aligned input, so the caller pads.
	plaintext := []byte("hello           ")
	opts := session.Options{
		Key:       key,
		SourceID:  1,
		DestID:    2,
		Algorithm: suite.AES128,
		Mode:      suite.ECB,
	}
	in, initErr, respErr := runExchange(t, opts, key, plaintext)
	if initErr != nil {
		t.Fatalf("initiator: %v", initErr)
	}
	if respErr != nil {
		t.Fatalf("responder: %v", respErr)
	}
	if !bytes.Equal(in.Plaintext, plaintext) {
		t.Fatalf("responder recovered %q, want %q", in.Plaintext, plaintext)
	}
	if in.SourceID != 1 || in.DestID != 2 {
		t.Fatalf("ids %d -> %d, want 1 -> 2", in.SourceID, in.DestID)
	}
	if in.Algorithm != suite.AES128 || in.Mode != suite.ECB || in.Padding {
		t.Fatalf("negotiated %s %s padding=%v", in.Algorithm, in.Mode, in.Padding)
	}
}

func TestExchangeAES256CFB8WithPadding(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	for _, n := range []int{1, 5, 100, 1439, 1440} {
		plaintext := bytes.Repeat([]byte{0x69}, n)
		opts := session.Options{
			Key:       key,
			SourceID:  10,
			DestID:    20,
			Algorithm: suite.AES256,
			Mode:      suite.CFB8,
			Padding:   true,
		}
		in, initErr, respErr := runExchange(t, opts, key, plaintext)
		if initErr != nil {
			t.Fatalf("n=%d initiator: %v", n, initErr)
		}
		if respErr != nil {
			t.Fatalf("n=%d responder: %v", n, respErr)
		}
		if !bytes.Equal(in.Plaintext, plaintext) {
			t.Fatalf("n=%d: responder recovered %d bytes", n, len(in.Plaintext))
		}
	}
}

func TestExchange3DESCTR(t *testing.T) {
	key := []byte("0123456789abcdef01234567")
	plaintext := []byte("mensagem de teste")
	opts := session.Options{
		Key:       key,
		SourceID:  7,
		DestID:    8,
		Algorithm: suite.DES3E3,
		Mode:      suite.CTR,
		Padding:   true,
	}
	in, initErr, respErr := runExchange(t, opts, key, plaintext)
	if initErr != nil {
		t.Fatalf("initiator: %v", initErr)
	}
	if respErr != nil {
		t.Fatalf("responder: %v", respErr)
	}
	if !bytes.Equal(in.Plaintext, plaintext) {
		t.Fatalf("recovered %q", in.Plaintext)
	}
}

func TestOversizedPlaintextFailsBeforeAnyIO(t *testing.T) {
	tr := &scriptedTransport{}
	opts := session.Options{
		Key:       []byte("chave 1 de teste"),
		Algorithm: suite.AES128,
		Mode:      suite.CTR,
	}
	err := session.Initiate(context.Background(), tr, opts, make([]byte, wire.MaxPlaintextLen+1))
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Stage != session.StageValidate || pe.Code != wire.Internal {
		t.Fatalf("got stage=%s code=%s", pe.Stage, pe.Code)
	}
	if tr.ops != 0 {
		t.Fatalf("%d transport operations before failing", tr.ops)
	}
}

func TestUnregisteredLocalParamsFailBeforeAnyIO(t *testing.T) {
	tr := &scriptedTransport{}
	opts := session.Options{
		Key:       []byte("chave 1 de teste"),
		Algorithm: suite.Algorithm(9),
		Mode:      suite.ECB,
	}
	err := session.Initiate(context.Background(), tr, opts, []byte("hi"))
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Stage != session.StageValidate || pe.Code != wire.NotSupportedParams {
		t.Fatalf("got stage=%s code=%s", pe.Stage, pe.Code)
	}
	if tr.ops != 0 {
		t.Fatalf("%d transport operations before failing", tr.ops)
	}
}

func TestInitiatorRejectsZeroIV(t *testing.T) {
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeParConf, wire.OK))
	tr.feed(make([]byte, wire.IVLen)...)

	opts := session.Options{
		Key:       []byte("chave 1 de teste"),
		SourceID:  1,
		DestID:    2,
		Algorithm: suite.AES128,
		Mode:      suite.CBC,
	}
	err := session.Initiate(context.Background(), tr, opts, []byte("0123456789abcdef"))
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Code != wire.NullIV {
		t.Fatalf("got code %s, want null_iv", pe.Code)
	}
	// ParReq, then the abort Conf(Internal). Never a Dados frame.
	if len(tr.sent) != 2 {
		t.Fatalf("sent %d frames, want 2", len(tr.sent))
	}
	if tr.sent[1][0] != wire.EncodeConf(wire.Internal) {
		t.Fatalf("abort frame %x, want Conf(Internal)", tr.sent[1])
	}
	for _, frame := range tr.sent {
		if mt, _, err := wire.DecodeHeader(frame[0]); err == nil && mt == wire.TypeDados {
			t.Fatal("Dados sent after zero IV")
		}
	}
}

func TestInitiatorHandlesListaRejection(t *testing.T) {
	entries := []wire.ListaEntry{
		{Algorithm: suite.AES128, Mode: suite.ECB},
		{Algorithm: suite.AES256, Mode: suite.CFB8, Padding: true},
	}
	body, err := wire.EncodeLista(entries)
	if err != nil {
		t.Fatalf("encode lista: %v", err)
	}
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeLista, wire.NotSupportedParams))
	tr.feed(body...)

	opts := session.Options{
		Key:       []byte("chave 1 de teste"),
		Algorithm: suite.DES,
		Mode:      suite.CTR,
	}
	err = session.Initiate(context.Background(), tr, opts, []byte("hi"))
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Code != wire.NotSupportedParams {
		t.Fatalf("got code %s, want not_supported_params", pe.Code)
	}
	if len(pe.Supported) != len(entries) {
		t.Fatalf("got %d advertised entries, want %d", len(pe.Supported), len(entries))
	}
	for i := range entries {
		if pe.Supported[i] != entries[i] {
			t.Fatalf("entry %d: got %+v, want %+v", i, pe.Supported[i], entries[i])
		}
	}
	// A Lista rejection terminates silently: only the ParReq went out.
	if len(tr.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(tr.sent))
	}
}

func TestInitiatorUnexpectedTypeAfterParReq(t *testing.T) {
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeConf, wire.OK))

	opts := session.Options{
		Key:       []byte("chave 1 de teste"),
		Algorithm: suite.AES128,
		Mode:      suite.CTR,
	}
	err := session.Initiate(context.Background(), tr, opts, []byte("hi"))
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Code != wire.UnexpectedType {
		t.Fatalf("got code %s, want unexpected_type", pe.Code)
	}
	if len(tr.sent) != 2 || tr.sent[1][0] != wire.EncodeConf(wire.Internal) {
		t.Fatalf("abort Conf(Internal) not sent, frames: %d", len(tr.sent))
	}
}

func TestInitiatorUnexpectedFinalConf(t *testing.T) {
	iv := bytes.Repeat([]byte{0x11}, wire.IVLen)
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeParConf, wire.OK))
	tr.feed(iv...)
	tr.feed(wire.EncodeHeader(wire.TypeParReq, wire.OK))

	opts := session.Options{
		Key:       []byte("chave 1 de teste"),
		Algorithm: suite.AES128,
		Mode:      suite.CTR,
	}
	err := session.Initiate(context.Background(), tr, opts, []byte("hi"))
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Stage != session.StageConf || pe.Code != wire.UnexpectedType {
		t.Fatalf("got stage=%s code=%s", pe.Stage, pe.Code)
	}
	// The responder finished already: ParReq and Dados only, no abort frame.
	if len(tr.sent) != 2 {
		t.Fatalf("sent %d frames, want 2", len(tr.sent))
	}
}

func TestInitiatorSurfacesResponderErrorCode(t *testing.T) {
	iv := bytes.Repeat([]byte{0x11}, wire.IVLen)
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeParConf, wire.OK))
	tr.feed(iv...)
	tr.feed(wire.EncodeConf(wire.DataError))

	opts := session.Options{
		Key:       []byte("chave 1 de teste"),
		Algorithm: suite.AES128,
		Mode:      suite.CTR,
	}
	err := session.Initiate(context.Background(), tr, opts, []byte("hi"))
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Stage != session.StageConf || pe.Code != wire.DataError {
		t.Fatalf("got stage=%s code=%s", pe.Stage, pe.Code)
	}
}

func TestResponderRejectsUnsupportedParams(t *testing.T) {
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeParReq, wire.OK))
	tr.feed(0x00, 0x01, 0x00, 0x02, 0xf0, 0x00) // algorithm code 15

	_, err := session.Respond(context.Background(), tr, session.ResponderOptions{Key: []byte("chave 1 de teste")})
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Code != wire.NotSupportedParams {
		t.Fatalf("got code %s, want not_supported_params", pe.Code)
	}
	// Conf(Internal) only; never a ParConf.
	if len(tr.sent) != 1 || tr.sent[0][0] != wire.EncodeConf(wire.Internal) {
		t.Fatalf("unexpected frames: %x", tr.sent)
	}
}

func TestResponderRejectsUnexpectedFirstMessage(t *testing.T) {
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeDados, wire.OK))

	_, err := session.Respond(context.Background(), tr, session.ResponderOptions{Key: []byte("chave 1 de teste")})
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Stage != session.StageParReq || pe.Code != wire.UnexpectedType {
		t.Fatalf("got stage=%s code=%s", pe.Stage, pe.Code)
	}
	if len(tr.sent) != 1 || tr.sent[0][0] != wire.EncodeConf(wire.Internal) {
		t.Fatalf("unexpected frames: %x", tr.sent)
	}
}

func TestResponderPayloadStageMismatchSendsNothing(t *testing.T) {
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeParReq, wire.OK))
	tr.feed(0x00, 0x01, 0x00, 0x02, 0x00, 0x00) // AES128/ECB, no padding
	tr.feed(wire.EncodeHeader(wire.TypeParReq, wire.OK))

	_, err := session.Respond(context.Background(), tr, session.ResponderOptions{Key: []byte("chave 1 de teste")})
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Stage != session.StageDados || pe.Code != wire.UnexpectedType {
		t.Fatalf("got stage=%s code=%s", pe.Stage, pe.Code)
	}
	// Only the ParConf went out; the mismatch is propagated without sending.
	if len(tr.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(tr.sent))
	}
	if mt, _, err := wire.DecodeHeader(tr.sent[0][0]); err != nil || mt != wire.TypeParConf {
		t.Fatalf("first frame %x, want ParConf", tr.sent[0][0])
	}
}

func TestResponderSignalsDataError(t *testing.T) {
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeParReq, wire.OK))
	tr.feed(0x00, 0x01, 0x00, 0x02, 0x00, 0x01) // AES128/CBC, no padding
	tr.feed(wire.EncodeHeader(wire.TypeDados, wire.OK))
	tr.feed(0x00, 0x05)
	tr.feed([]byte("xxxxx")...) // not block aligned, decryption must fail

	_, err := session.Respond(context.Background(), tr, session.ResponderOptions{Key: []byte("chave 1 de teste")})
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Code != wire.DataError {
		t.Fatalf("got code %s, want data_error", pe.Code)
	}
	last := tr.sent[len(tr.sent)-1]
	if last[0] != wire.EncodeConf(wire.DataError) {
		t.Fatalf("final frame %x, want Conf(DataError)", last)
	}
}

func TestBrokenTransportIsFatal(t *testing.T) {
	ic, rc := net.Pipe()
	defer ic.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		// Swallow the ParReq, then drop the connection.
		buf := make([]byte, 7)
		total := 0
		for total < len(buf) {
			n, err := rc.Read(buf[total:])
			total += n
			if err != nil {
				break
			}
		}
		rc.Close()
	}()

	opts := session.Options{
		Key:       []byte("chave 1 de teste"),
		Algorithm: suite.AES128,
		Mode:      suite.CTR,
	}
	err := session.Initiate(ctx, transport.NewStream(ic), opts, []byte("hi"))
	if !errors.Is(err, transport.ErrConnectionBroken) {
		t.Fatalf("got %v, want ErrConnectionBroken", err)
	}
	var pe *session.Error
	if errors.As(err, &pe) {
		t.Fatalf("transport failure wrapped as protocol error: %v", pe)
	}
}

func TestEncryptionFailureAbortsWithConfInternal(t *testing.T) {
	iv := bytes.Repeat([]byte{0x11}, wire.IVLen)
	tr := &scriptedTransport{}
	tr.feed(wire.EncodeHeader(wire.TypeParConf, wire.OK))
	tr.feed(iv...)

	// Wrong key length for AES128: encryption fails after ParConf arrived.
	opts := session.Options{
		Key:       []byte("short"),
		Algorithm: suite.AES128,
		Mode:      suite.CTR,
	}
	err := session.Initiate(context.Background(), tr, opts, []byte("hi"))
	var pe *session.Error
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *session.Error", err)
	}
	if pe.Stage != session.StageEncrypt || pe.Code != wire.Internal {
		t.Fatalf("got stage=%s code=%s", pe.Stage, pe.Code)
	}
	if len(tr.sent) != 2 || tr.sent[1][0] != wire.EncodeConf(wire.Internal) {
		t.Fatalf("abort Conf(Internal) not sent, frames: %x", tr.sent)
	}
}
