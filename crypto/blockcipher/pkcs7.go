package blockcipher

import "fmt"

// The protocol pads at a fixed 128-bit block regardless of the cipher's own
// block size: PKCS#5 generalized per PKCS#7.
const padBlock = 16

func padPKCS7(data []byte) []byte {
	n := padBlock - len(data)%padBlock
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%padBlock != 0 {
		return nil, fmt.Errorf("%w: padded length %d", ErrCipher, len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > padBlock || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding byte %d", ErrCipher, n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrCipher)
		}
	}
	return data[:len(data)-n], nil
}
