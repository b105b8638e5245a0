package crypto

import (
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/aead/cmac"
)

// ContentKeyLabel is the SP 800-108 label used for derived content keys.
const ContentKeyLabel = "ContentKey"

// SP800108CounterKDF implements NIST SP 800-108 Key Derivation Function in Counter Mode
// using AES-CMAC as the pseudo-random function (PRF).
//
// The KDF produces output of the requested length by concatenating PRF outputs:
// K(i) = PRF(KI, [i]₂ || Label || 0x00 || Context || [L]₂)
// where:
//   - [i]₂ is a 32-bit big-endian counter starting at 1
//   - Label is the purpose string
//   - 0x00 is a separator byte
//   - Context is additional context data
//   - [L]₂ is a 32-bit big-endian representation of output length in bits
func SP800108CounterKDF(key []byte, label, context string, outputLen int) ([]byte, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 16 or 32 bytes, got %d", ErrInvalidArgument, len(key))
	}

	if outputLen <= 0 {
		return nil, fmt.Errorf("%w: output length must be positive, got %d", ErrInvalidArgument, outputLen)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	mac, err := cmac.New(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create CMAC: %w", err)
	}

	blockSize := mac.Size()
	numBlocks := (outputLen + blockSize - 1) / blockSize

	fixedInput := make([]byte, 0, len(label)+1+len(context)+4)
	fixedInput = append(fixedInput, label...)
	fixedInput = append(fixedInput, 0x00)
	fixedInput = append(fixedInput, context...)
	fixedInput = binary.BigEndian.AppendUint32(fixedInput, uint32(outputLen*8))

	result := make([]byte, 0, numBlocks*blockSize)
	counterBytes := make([]byte, 4)

	for i := 1; i <= numBlocks; i++ {
		mac.Reset()

		binary.BigEndian.PutUint32(counterBytes, uint32(i))
		mac.Write(counterBytes)
		mac.Write(fixedInput)

		result = append(result, mac.Sum(nil)...)
	}

	return result[:outputLen], nil
}

// DeriveContentKey derives a 16-byte content key for kid from a master key.
// The KID in lowercase hex is the KDF context.
func DeriveContentKey(masterKey, kid []byte) ([]byte, error) {
	if len(kid) == 0 {
		return nil, fmt.Errorf("%w: empty key ID", ErrInvalidArgument)
	}

	return SP800108CounterKDF(masterKey, ContentKeyLabel, hex.EncodeToString(kid), AES128KeySize)
}
