package wire

import "fmt"

// Code is a protocol outcome carried in the low nibble of a message header.
// The set is closed: peers never see a value outside OK..DataError.
type Code uint8

const (
	OK                 Code = 0
	NotSupportedParams Code = 1
	Internal           Code = 2
	KeyNotShared       Code = 3 // reserved for key-distribution failures
	UnexpectedType     Code = 4
	NullIV             Code = 5
	DataError          Code = 6
)

var codeNames = map[Code]string{
	OK:                 "ok",
	NotSupportedParams: "not_supported_params",
	Internal:           "internal",
	KeyNotShared:       "key_not_shared",
	UnexpectedType:     "unexpected_type",
	NullIV:             "null_iv",
	DataError:          "data_error",
}

// Valid reports whether c is a member of the closed code set.
func (c Code) Valid() bool {
	_, ok := codeNames[c]
	return ok
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", uint8(c))
}
