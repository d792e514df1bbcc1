package blockcipher

import (
	"crypto/cipher"
	"fmt"
)

// The standard library ships neither ECB nor 8-bit CFB, so both live here.

func ecbEncrypt(block cipher.Block, data []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(data)%bs != 0 {
		return nil, fmt.Errorf("%w: ECB input %d not a multiple of %d", ErrCipher, len(data), bs)
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		block.Encrypt(out[i:i+bs], data[i:i+bs])
	}
	return out, nil
}

func ecbDecrypt(block cipher.Block, data []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(data)%bs != 0 {
		return nil, fmt.Errorf("%w: ECB input %d not a multiple of %d", ErrCipher, len(data), bs)
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		block.Decrypt(out[i:i+bs], data[i:i+bs])
	}
	return out, nil
}

// cfb8Encrypt runs CFB with an 8-bit feedback width: each output byte is fed
// back into the shift register, one byte at a time.
func cfb8Encrypt(block cipher.Block, iv, data []byte) []byte {
	bs := block.BlockSize()
	sr := make([]byte, bs)
	copy(sr, iv)
	ks := make([]byte, bs)
	out := make([]byte, len(data))
	for i, p := range data {
		block.Encrypt(ks, sr)
		c := p ^ ks[0]
		out[i] = c
		copy(sr, sr[1:])
		sr[bs-1] = c
	}
	return out
}

func cfb8Decrypt(block cipher.Block, iv, data []byte) []byte {
	bs := block.BlockSize()
	sr := make([]byte, bs)
	copy(sr, iv)
	ks := make([]byte, bs)
	out := make([]byte, len(data))
	for i, c := range data {
		block.Encrypt(ks, sr)
		out[i] = c ^ ks[0]
		copy(sr, sr[1:])
		sr[bs-1] = c
	}
	return out
}
