package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESCTRDecrypt(t *testing.T) {
	t.Run("decryption is reversible", func(t *testing.T) {
		key := make([]byte, 16)
		iv := make([]byte, 16)
		plaintext := []byte("Hello, World! This is a test message.")

		ciphertext, err := AESCTREncrypt(key, iv, plaintext)
		require.NoError(t, err)

		decrypted, err := AESCTRDecrypt(key, iv, ciphertext)
		require.NoError(t, err)

		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("preserves length", func(t *testing.T) {
		key := make([]byte, 16)
		iv := make([]byte, 16)

		for _, length := range []int{0, 1, 15, 16, 17, 32, 100} {
			plaintext := bytes.Repeat([]byte{0x42}, length)
			ciphertext, err := AESCTREncrypt(key, iv, plaintext)
			require.NoError(t, err)
			assert.Len(t, ciphertext, length)
		}
	})

	t.Run("different IVs produce different ciphertext", func(t *testing.T) {
		key := make([]byte, 16)
		iv1 := make([]byte, 16)
		iv2 := make([]byte, 16)
		iv2[15] = 1
		plaintext := []byte("test message")

		ct1, err := AESCTREncrypt(key, iv1, plaintext)
		require.NoError(t, err)

		ct2, err := AESCTREncrypt(key, iv2, plaintext)
		require.NoError(t, err)

		assert.NotEqual(t, ct1, ct2)
	})

	t.Run("rejects invalid key sizes", func(t *testing.T) {
		iv := make([]byte, 16)

		for _, size := range []int{0, 8, 15, 17, 24, 32} {
			_, err := AESCTRDecrypt(make([]byte, size), iv, []byte("test"))
			assert.ErrorIs(t, err, ErrInvalidArgument, "should reject key size %d", size)
		}
	})

	t.Run("rejects invalid IV sizes", func(t *testing.T) {
		key := make([]byte, 16)

		for _, size := range []int{0, 8, 12, 15, 17} {
			_, err := AESCTRDecrypt(key, make([]byte, size), []byte("test"))
			assert.ErrorIs(t, err, ErrInvalidArgument, "should reject iv size %d", size)
		}
	})
}

// TestAESCTRKnownVector tests against NIST SP 800-38A F.5.1 CTR-AES128.
func TestAESCTRKnownVector(t *testing.T) {
	key, _ := hex.DecodeString(nistKeyHex)
	iv, _ := hex.DecodeString(nistIVHex)
	plaintext, _ := hex.DecodeString(nistPlaintextHex)
	ciphertext, _ := hex.DecodeString(nistCiphertextHex)

	encrypted, err := AESCTREncrypt(key, iv, plaintext)
	require.NoError(t, err)
	assert.Equal(t, ciphertext, encrypted)

	decrypted, err := AESCTRDecrypt(key, iv, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestPadIV(t *testing.T) {
	t.Run("pads 8-byte IV with zero counter", func(t *testing.T) {
		iv, _ := hex.DecodeString("0102030405060708")

		padded, err := PadIV(iv)
		require.NoError(t, err)
		assert.Equal(t, "01020304050607080000000000000000", hex.EncodeToString(padded))
	})

	t.Run("copies 16-byte IV", func(t *testing.T) {
		iv, _ := hex.DecodeString(nistIVHex)

		padded, err := PadIV(iv)
		require.NoError(t, err)
		assert.Equal(t, iv, padded)

		padded[0] = 0
		assert.NotEqual(t, iv, padded, "result must not alias input")
	})

	t.Run("rejects other sizes", func(t *testing.T) {
		for _, size := range []int{0, 4, 12, 17} {
			_, err := PadIV(make([]byte, size))
			assert.ErrorIs(t, err, ErrInvalidArgument, "should reject iv size %d", size)
		}
	})
}
