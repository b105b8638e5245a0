package crypto

import (
	"crypto/aes"
	"crypto/subtle"
	"fmt"

	"github.com/aead/cmac"
)

const (
	// CheckValueSize is the size of a truncated key check value in bytes.
	CheckValueSize = 4
)

// KeyCheckValue computes a 4-byte truncated AES-CMAC of the key ID under the
// content key. It binds a stored key to its KID so a swapped or corrupted
// key is caught before it is used to produce plaintext.
func KeyCheckValue(key, kid []byte) ([]byte, error) {
	full, err := ComputeFullCMAC(key, kid)
	if err != nil {
		return nil, err
	}

	return full[:CheckValueSize], nil
}

// VerifyKeyCheckValue checks a stored check value against the key and KID.
// Uses constant-time comparison.
func VerifyKeyCheckValue(key, kid, expected []byte) (bool, error) {
	if len(expected) != CheckValueSize {
		return false, fmt.Errorf("%w: check value must be %d bytes, got %d", ErrInvalidArgument, CheckValueSize, len(expected))
	}

	computed, err := KeyCheckValue(key, kid)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// ComputeFullCMAC computes the full 16-byte AES-CMAC (not truncated).
func ComputeFullCMAC(key, data []byte) ([]byte, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 16 or 32 bytes, got %d", ErrInvalidArgument, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	mac, err := cmac.New(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create CMAC: %w", err)
	}

	mac.Write(data)
	return mac.Sum(nil), nil
}
