package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCheckValue(t *testing.T) {
	key, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	kid, _ := hex.DecodeString("0123456789abcdef0123456789abcdef")

	t.Run("produces 4-byte check value", func(t *testing.T) {
		kcv, err := KeyCheckValue(key, kid)
		require.NoError(t, err)
		assert.Len(t, kcv, CheckValueSize)
	})

	t.Run("deterministic output", func(t *testing.T) {
		kcv1, err := KeyCheckValue(key, kid)
		require.NoError(t, err)

		kcv2, err := KeyCheckValue(key, kid)
		require.NoError(t, err)

		assert.Equal(t, kcv1, kcv2)
	})

	t.Run("different KIDs produce different values", func(t *testing.T) {
		otherKID := append([]byte(nil), kid...)
		otherKID[15] ^= 0x01

		kcv1, err := KeyCheckValue(key, kid)
		require.NoError(t, err)

		kcv2, err := KeyCheckValue(key, otherKID)
		require.NoError(t, err)

		assert.NotEqual(t, kcv1, kcv2)
	})

	t.Run("different keys produce different values", func(t *testing.T) {
		otherKey := append([]byte(nil), key...)
		otherKey[0] ^= 0x01

		kcv1, err := KeyCheckValue(key, kid)
		require.NoError(t, err)

		kcv2, err := KeyCheckValue(otherKey, kid)
		require.NoError(t, err)

		assert.NotEqual(t, kcv1, kcv2)
	})

	t.Run("rejects invalid key sizes", func(t *testing.T) {
		for _, size := range []int{0, 8, 15, 17, 24, 31, 33} {
			_, err := KeyCheckValue(make([]byte, size), kid)
			assert.ErrorIs(t, err, ErrInvalidArgument, "should reject key size %d", size)
		}
	})
}

func TestVerifyKeyCheckValue(t *testing.T) {
	key := make([]byte, 16)
	kid := []byte("0123456789abcdef")

	t.Run("returns true for matching value", func(t *testing.T) {
		kcv, err := KeyCheckValue(key, kid)
		require.NoError(t, err)

		valid, err := VerifyKeyCheckValue(key, kid, kcv)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("returns false for wrong value", func(t *testing.T) {
		valid, err := VerifyKeyCheckValue(key, kid, []byte{0x00, 0x00, 0x00, 0x00})
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("returns false for swapped key", func(t *testing.T) {
		kcv, err := KeyCheckValue(key, kid)
		require.NoError(t, err)

		otherKey := make([]byte, 16)
		otherKey[3] = 0x42
		valid, err := VerifyKeyCheckValue(otherKey, kid, kcv)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("rejects wrong check value length", func(t *testing.T) {
		_, err := VerifyKeyCheckValue(key, kid, []byte{0x00, 0x00, 0x00})
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = VerifyKeyCheckValue(key, kid, []byte{0x00, 0x00, 0x00, 0x00, 0x00})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestComputeFullCMAC(t *testing.T) {
	t.Run("produces 16-byte output", func(t *testing.T) {
		mac, err := ComputeFullCMAC(make([]byte, 16), []byte("test data"))
		require.NoError(t, err)
		assert.Len(t, mac, 16)
	})

	t.Run("check value matches full CMAC prefix", func(t *testing.T) {
		key := make([]byte, 16)
		kid := []byte("0123456789abcdef")

		fullMAC, err := ComputeFullCMAC(key, kid)
		require.NoError(t, err)

		kcv, err := KeyCheckValue(key, kid)
		require.NoError(t, err)

		assert.Equal(t, fullMAC[:CheckValueSize], kcv)
	})
}

// TestCMACKnownVector tests against AES-CMAC test vectors from RFC 4493.
func TestCMACKnownVector(t *testing.T) {
	key, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")

	t.Run("RFC 4493 empty message", func(t *testing.T) {
		expected, _ := hex.DecodeString("bb1d6929e95937287fa37d129b756746")

		mac, err := ComputeFullCMAC(key, []byte{})
		require.NoError(t, err)
		assert.Equal(t, expected, mac)
	})

	t.Run("RFC 4493 16-byte message", func(t *testing.T) {
		message, _ := hex.DecodeString("6bc1bee22e409f96e93d7e117393172a")
		expected, _ := hex.DecodeString("070a16b46b4d4144f79bdd9dd04a287c")

		mac, err := ComputeFullCMAC(key, message)
		require.NoError(t, err)
		assert.Equal(t, expected, mac)
	})

	t.Run("RFC 4493 40-byte message", func(t *testing.T) {
		message, _ := hex.DecodeString("6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e5130c81c46a35ce411")
		expected, _ := hex.DecodeString("dfa66747de9ae63030ca32611497c827")

		mac, err := ComputeFullCMAC(key, message)
		require.NoError(t, err)
		assert.Equal(t, expected, mac)
	})
}
