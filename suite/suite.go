// Package suite maps the cipher algorithms and block modes the protocol can
// negotiate to their wire codes and back. The tables are the single source of
// truth for parameter validation on both roles.
package suite

import (
	"errors"
	"fmt"
)

// ErrNotSupported reports a lookup of an unregistered algorithm or mode.
var ErrNotSupported = errors.New("suite: not supported")

// Algorithm is a negotiable block cipher, identified on the wire by a 4-bit code.
type Algorithm uint8

const (
	AES128 Algorithm = 0
	AES192 Algorithm = 1
	AES256 Algorithm = 2
	DES    Algorithm = 3
	DES3E2 Algorithm = 4 // 3DES-EDE2, two independent keys
	DES3E3 Algorithm = 5 // 3DES-EDE3, three independent keys
)

// Mode is a negotiable block cipher mode of operation. Codes 2, 4 and 5 are
// reserved for the CFB variants this implementation does not enable.
type Mode uint8

const (
	ECB  Mode = 0
	CBC  Mode = 1
	CFB8 Mode = 3
	CTR  Mode = 6
)

var algorithmNames = map[Algorithm]string{
	AES128: "AES128",
	AES192: "AES192",
	AES256: "AES256",
	DES:    "DES",
	DES3E2: "3DES-EDE2",
	DES3E3: "3DES-EDE3",
}

var algorithmCodes = map[string]Algorithm{
	"AES128":    AES128,
	"AES192":    AES192,
	"AES256":    AES256,
	"DES":       DES,
	"3DES-EDE2": DES3E2,
	"3DES-EDE3": DES3E3,
}

var modeNames = map[Mode]string{
	ECB:  "ECB",
	CBC:  "CBC",
	CFB8: "CFB8",
	CTR:  "CTR",
}

var modeCodes = map[string]Mode{
	"ECB":  ECB,
	"CBC":  CBC,
	"CFB8": CFB8,
	"CTR":  CTR,
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", uint8(a))
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// AlgorithmByName resolves a human-readable algorithm name to its wire code.
func AlgorithmByName(name string) (Algorithm, error) {
	a, ok := algorithmCodes[name]
	if !ok {
		return 0, fmt.Errorf("%w: algorithm %q", ErrNotSupported, name)
	}
	return a, nil
}

// AlgorithmByCode validates a wire code received from the peer.
func AlgorithmByCode(code uint8) (Algorithm, error) {
	a := Algorithm(code)
	if _, ok := algorithmNames[a]; !ok {
		return 0, fmt.Errorf("%w: algorithm code %d", ErrNotSupported, code)
	}
	return a, nil
}

// ModeByName resolves a human-readable mode name to its wire code.
func ModeByName(name string) (Mode, error) {
	m, ok := modeCodes[name]
	if !ok {
		return 0, fmt.Errorf("%w: mode %q", ErrNotSupported, name)
	}
	return m, nil
}

// ModeByCode validates a wire code received from the peer.
func ModeByCode(code uint8) (Mode, error) {
	m := Mode(code)
	if _, ok := modeNames[m]; !ok {
		return 0, fmt.Errorf("%w: mode code %d", ErrNotSupported, code)
	}
	return m, nil
}

// Algorithms returns every registered algorithm in wire-code order.
func Algorithms() []Algorithm {
	return []Algorithm{AES128, AES192, AES256, DES, DES3E2, DES3E3}
}

// Modes returns every registered mode in wire-code order.
func Modes() []Mode {
	return []Mode{ECB, CBC, CFB8, CTR}
}
