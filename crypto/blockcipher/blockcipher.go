// Package blockcipher is the symmetric-cipher collaborator for the exchange
// protocol: block cipher construction, mode application and PKCS#7 padding
// for every algorithm/mode pair the registry advertises.
package blockcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"errors"
	"fmt"

	"github.com/cifranet/cifra/suite"
)

// ErrCipher is the generic failure class of this package. Key-size
// mismatches, unsupported parameter pairs and malformed padding all wrap it.
var ErrCipher = errors.New("blockcipher: operation failed")

// KeySize returns the exact key length in bytes an algorithm requires.
func KeySize(alg suite.Algorithm) (int, error) {
	switch alg {
	case suite.AES128:
		return 16, nil
	case suite.AES192:
		return 24, nil
	case suite.AES256:
		return 32, nil
	case suite.DES:
		return 8, nil
	case suite.DES3E2:
		return 16, nil
	case suite.DES3E3:
		return 24, nil
	default:
		return 0, fmt.Errorf("%w: unknown algorithm %s", ErrCipher, alg)
	}
}

func newBlock(key []byte, alg suite.Algorithm) (cipher.Block, error) {
	want, err := KeySize(alg)
	if err != nil {
		return nil, err
	}
	if len(key) != want {
		return nil, fmt.Errorf("%w: %s needs a %d-byte key, got %d", ErrCipher, alg, want, len(key))
	}
	switch alg {
	case suite.AES128, suite.AES192, suite.AES256:
		b, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCipher, err)
		}
		return b, nil
	case suite.DES:
		b, err := des.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCipher, err)
		}
		return b, nil
	case suite.DES3E2:
		// EDE2 keying: k1, k2, k1.
		full := make([]byte, 0, 24)
		full = append(full, key...)
		full = append(full, key[:8]...)
		b, err := des.NewTripleDESCipher(full)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCipher, err)
		}
		return b, nil
	case suite.DES3E3:
		b, err := des.NewTripleDESCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCipher, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %s", ErrCipher, alg)
	}
}

// modeIV trims the 16-byte wire IV to the cipher's block size. Both peers
// trim identically, so DES-family modes stay in sync.
func modeIV(block cipher.Block, iv []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(iv) < bs {
		return nil, fmt.Errorf("%w: iv %d shorter than block size %d", ErrCipher, len(iv), bs)
	}
	return iv[:bs], nil
}

// Encrypt applies the negotiated algorithm and mode to plaintext. With pad
// set, the plaintext is PKCS#7-padded to the protocol's fixed 128-bit block
// first; without it, block modes require block-aligned input.
func Encrypt(plaintext, key, iv []byte, alg suite.Algorithm, mode suite.Mode, pad bool) ([]byte, error) {
	block, err := newBlock(key, alg)
	if err != nil {
		return nil, err
	}
	data := plaintext
	if pad {
		data = padPKCS7(plaintext)
	}
	switch mode {
	case suite.ECB:
		return ecbEncrypt(block, data)
	case suite.CBC:
		ivb, err := modeIV(block, iv)
		if err != nil {
			return nil, err
		}
		if len(data)%block.BlockSize() != 0 {
			return nil, fmt.Errorf("%w: CBC input %d not a multiple of %d", ErrCipher, len(data), block.BlockSize())
		}
		out := make([]byte, len(data))
		cipher.NewCBCEncrypter(block, ivb).CryptBlocks(out, data)
		return out, nil
	case suite.CFB8:
		ivb, err := modeIV(block, iv)
		if err != nil {
			return nil, err
		}
		return cfb8Encrypt(block, ivb, data), nil
	case suite.CTR:
		ivb, err := modeIV(block, iv)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(data))
		cipher.NewCTR(block, ivb).XORKeyStream(out, data)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported mode %s", ErrCipher, mode)
	}
}

// Decrypt inverts Encrypt, stripping PKCS#7 padding when pad is set.
func Decrypt(ciphertext, key, iv []byte, alg suite.Algorithm, mode suite.Mode, pad bool) ([]byte, error) {
	block, err := newBlock(key, alg)
	if err != nil {
		return nil, err
	}
	var out []byte
	switch mode {
	case suite.ECB:
		out, err = ecbDecrypt(block, ciphertext)
		if err != nil {
			return nil, err
		}
	case suite.CBC:
		ivb, err := modeIV(block, iv)
		if err != nil {
			return nil, err
		}
		if len(ciphertext)%block.BlockSize() != 0 {
			return nil, fmt.Errorf("%w: CBC input %d not a multiple of %d", ErrCipher, len(ciphertext), block.BlockSize())
		}
		out = make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(block, ivb).CryptBlocks(out, ciphertext)
	case suite.CFB8:
		ivb, err := modeIV(block, iv)
		if err != nil {
			return nil, err
		}
		out = cfb8Decrypt(block, ivb, ciphertext)
	case suite.CTR:
		ivb, err := modeIV(block, iv)
		if err != nil {
			return nil, err
		}
		out = make([]byte, len(ciphertext))
		cipher.NewCTR(block, ivb).XORKeyStream(out, ciphertext)
	default:
		return nil, fmt.Errorf("%w: unsupported mode %s", ErrCipher, mode)
	}
	if pad {
		return unpadPKCS7(out)
	}
	return out, nil
}
