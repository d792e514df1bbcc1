// Package wire encodes and decodes the five message types of the exchange
// protocol. Every message starts with a single header byte packing a 4-bit
// message type and a 4-bit outcome code; multi-byte integers are big-endian.
// All functions are pure; reading the right number of body bytes from the
// transport is the caller's job.
package wire

import (
	"errors"
	"fmt"

	"github.com/cifranet/cifra/internal/bin"
	"github.com/cifranet/cifra/suite"
)

const (
	// IVLen is the fixed ParConf body size.
	IVLen = 16
	// ParReqLen is the fixed ParReq body size.
	ParReqLen = 6
	// MaxPlaintextLen caps the plaintext a single Dados frame may carry.
	MaxPlaintextLen = 1440
	// ListaEntryLen is the fixed size of one Lista capability entry.
	ListaEntryLen = 2
)

var (
	ErrInvalidType    = errors.New("wire: invalid message type")
	ErrInvalidCode    = errors.New("wire: invalid code")
	ErrInvalidLength  = errors.New("wire: invalid length")
	ErrInvalidPadding = errors.New("wire: invalid padding flag")
	ErrZeroIV         = errors.New("wire: all-zero iv")
)

// MsgType identifies a protocol message, carried in the high header nibble.
type MsgType uint8

const (
	TypeParReq  MsgType = 0
	TypeParConf MsgType = 1
	TypeDados   MsgType = 2
	TypeLista   MsgType = 3
	TypeConf    MsgType = 4
)

var typeNames = map[MsgType]string{
	TypeParReq:  "par_req",
	TypeParConf: "par_conf",
	TypeDados:   "dados",
	TypeLista:   "lista",
	TypeConf:    "conf",
}

func (t MsgType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// EncodeHeader packs a message type and an outcome code into one byte.
func EncodeHeader(t MsgType, c Code) byte {
	return byte(t)<<4 | byte(c)&0x0f
}

// DecodeHeader splits a header byte and range-checks both nibbles.
func DecodeHeader(b byte) (MsgType, Code, error) {
	t := MsgType(b >> 4)
	c := Code(b & 0x0f)
	if _, ok := typeNames[t]; !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidType, uint8(t))
	}
	if !c.Valid() {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidCode, uint8(c))
	}
	return t, c, nil
}

// ParReq is the initiator's parameter proposal.
type ParReq struct {
	SourceID  uint16
	DestID    uint16
	Algorithm suite.Algorithm
	Mode      suite.Mode
	Padding   bool
}

// EncodeParReq serializes the 6-byte ParReq body.
func EncodeParReq(req ParReq) []byte {
	out := make([]byte, ParReqLen)
	bin.PutU16BE(out[0:2], req.SourceID)
	bin.PutU16BE(out[2:4], req.DestID)
	pad := byte(0)
	if req.Padding {
		pad = 1
	}
	out[4] = byte(req.Algorithm)<<4 | pad
	out[5] = byte(req.Mode)
	return out
}

// DecodeParReq parses a ParReq body, validating the algorithm and mode
// against the registry and the padding flag against {0,1}.
func DecodeParReq(body []byte) (ParReq, error) {
	if len(body) != ParReqLen {
		return ParReq{}, fmt.Errorf("%w: par_req body %d", ErrInvalidLength, len(body))
	}
	alg, err := suite.AlgorithmByCode(body[4] >> 4)
	if err != nil {
		return ParReq{}, err
	}
	mode, err := suite.ModeByCode(body[5])
	if err != nil {
		return ParReq{}, err
	}
	pad := body[4] & 0x0f
	if pad > 1 {
		return ParReq{}, fmt.Errorf("%w: %d", ErrInvalidPadding, pad)
	}
	return ParReq{
		SourceID:  bin.U16BE(body[0:2]),
		DestID:    bin.U16BE(body[2:4]),
		Algorithm: alg,
		Mode:      mode,
		Padding:   pad == 1,
	}, nil
}

// EncodeParConf serializes the 16-byte IV body.
func EncodeParConf(iv []byte) ([]byte, error) {
	if len(iv) != IVLen {
		return nil, fmt.Errorf("%w: iv %d", ErrInvalidLength, len(iv))
	}
	out := make([]byte, IVLen)
	copy(out, iv)
	return out, nil
}

// DecodeParConf validates the IV body. An all-zero IV is a protocol
// violation and never accepted.
func DecodeParConf(body []byte) ([]byte, error) {
	if len(body) != IVLen {
		return nil, fmt.Errorf("%w: iv %d", ErrInvalidLength, len(body))
	}
	zero := true
	for _, b := range body {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, ErrZeroIV
	}
	iv := make([]byte, IVLen)
	copy(iv, body)
	return iv, nil
}

// EncodeDados serializes a ciphertext body: u16 length plus the bytes.
func EncodeDados(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) > 0xffff {
		return nil, fmt.Errorf("%w: ciphertext %d", ErrInvalidLength, len(ciphertext))
	}
	out := make([]byte, 2+len(ciphertext))
	bin.PutU16BE(out[0:2], uint16(len(ciphertext)))
	copy(out[2:], ciphertext)
	return out, nil
}

// DecodeDadosLen parses the 2-byte length prefix of a Dados body. The caller
// then reads exactly that many ciphertext bytes from the transport.
func DecodeDadosLen(prefix []byte) (int, error) {
	if len(prefix) != 2 {
		return 0, fmt.Errorf("%w: dados prefix %d", ErrInvalidLength, len(prefix))
	}
	return int(bin.U16BE(prefix)), nil
}

// ListaEntry is one advertised algorithm/mode/padding combination.
type ListaEntry struct {
	Algorithm suite.Algorithm
	Mode      suite.Mode
	Padding   bool
}

// EncodeLista serializes a capability list body: a 1-byte payload length
// followed by fixed 2-byte entries. The responder in this implementation
// never sends one, but the frame stays encodable so the receive path is
// testable end to end.
func EncodeLista(entries []ListaEntry) ([]byte, error) {
	n := len(entries) * ListaEntryLen
	if n > 0xff {
		return nil, fmt.Errorf("%w: lista entries %d", ErrInvalidLength, len(entries))
	}
	out := make([]byte, 1+n)
	out[0] = byte(n)
	for i, e := range entries {
		pad := byte(0)
		if e.Padding {
			pad = 1
		}
		out[1+i*ListaEntryLen] = byte(e.Algorithm)<<4 | pad
		out[1+i*ListaEntryLen+1] = byte(e.Mode)
	}
	return out, nil
}

// DecodeLista parses the entry sequence that follows the 1-byte length.
// Entries carrying codes the registry does not know are kept as-is: the list
// reports what the peer supports, not what this side can use.
func DecodeLista(body []byte) ([]ListaEntry, error) {
	if len(body)%ListaEntryLen != 0 {
		return nil, fmt.Errorf("%w: lista body %d", ErrInvalidLength, len(body))
	}
	entries := make([]ListaEntry, 0, len(body)/ListaEntryLen)
	for i := 0; i < len(body); i += ListaEntryLen {
		entries = append(entries, ListaEntry{
			Algorithm: suite.Algorithm(body[i] >> 4),
			Mode:      suite.Mode(body[i+1]),
			Padding:   body[i]&0x0f == 1,
		})
	}
	return entries, nil
}

// EncodeConf serializes a delivery confirmation: header only, no body.
func EncodeConf(c Code) byte {
	return EncodeHeader(TypeConf, c)
}
