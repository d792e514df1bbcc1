// Package cmdutil holds small helpers shared by the cifra binaries.
package cmdutil

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseKey interprets the -key flag value. keyType selects between the raw
// ASCII bytes of the value and a hex-encoded string.
func ParseKey(value, keyType string) ([]byte, error) {
	switch keyType {
	case "ascii":
		if value == "" {
			return nil, errors.New("empty key")
		}
		return []byte(value), nil
	case "hex":
		key, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid hex key: %w", err)
		}
		if len(key) == 0 {
			return nil, errors.New("empty key")
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unknown key type %q", keyType)
	}
}

// ReadMessage reads a message until EOF. Whitespace-only input is rejected:
// an empty payload would make the exchange pointless.
func ReadMessage(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(b)) == "" {
		return nil, errors.New("message cannot be empty")
	}
	return b, nil
}

// SplitAlgorithm splits the "ALG,MODE" form of the -algorithm flag.
func SplitAlgorithm(value string) (alg, mode string, err error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid algorithm %q, want \"ALG,MODE\"", value)
	}
	return parts[0], parts[1], nil
}
