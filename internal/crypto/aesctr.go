package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AESCTRDecrypt decrypts a single contiguous region using AES in CTR mode.
// The IV is the full 16-byte initial counter block.
func AESCTRDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) != AES128KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidArgument, AES128KeySize, len(key))
	}

	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidArgument, BlockSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	stream := cipher.NewCTR(block, iv)

	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}

// AESCTREncrypt encrypts plaintext using AES in CTR mode.
// Since CTR mode is symmetric, this is the same as decryption.
func AESCTREncrypt(key, iv, plaintext []byte) ([]byte, error) {
	return AESCTRDecrypt(key, iv, plaintext)
}

// PadIV left-aligns an 8 or 16 byte CENC IV into a 16-byte counter block.
// The low 8 bytes of an 8-byte IV start at zero.
func PadIV(iv []byte) ([]byte, error) {
	if len(iv) != 8 && len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: iv must be 8 or %d bytes, got %d", ErrInvalidArgument, BlockSize, len(iv))
	}

	padded := make([]byte, BlockSize)
	copy(padded, iv)
	return padded, nil
}
