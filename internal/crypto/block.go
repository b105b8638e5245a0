package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// BlockSize is the AES block size and the size of the CTR counter.
	BlockSize = aes.BlockSize
	// AES128KeySize is the only content key size supported.
	AES128KeySize = 16

	// DefaultScheduleTTL is how long an expanded key schedule stays cached.
	DefaultScheduleTTL = 10 * time.Minute
)

// Backend selects a BlockCipher implementation.
type Backend string

const (
	BackendSoftware Backend = "software"
	BackendEnclave  Backend = "enclave"
)

// BlockCipher encrypts a single block with the given key. It is the only
// primitive the subsample decryptor needs; CTR mode is built on top of it.
//
// Implementations must be safe for concurrent use.
type BlockCipher interface {
	EncryptBlock(key []byte, in [BlockSize]byte) ([BlockSize]byte, error)
}

// SoftwareCipher implements BlockCipher with crypto/aes. Expanded key
// schedules are cached per key and never mutated once inserted.
type SoftwareCipher struct {
	schedules *cache.Cache
}

// NewSoftwareCipher creates a SoftwareCipher whose key schedules expire
// after ttl. A non-positive ttl uses DefaultScheduleTTL.
func NewSoftwareCipher(ttl time.Duration) *SoftwareCipher {
	if ttl <= 0 {
		ttl = DefaultScheduleTTL
	}

	// No janitor goroutine: expired entries are dropped on the next miss.
	return &SoftwareCipher{schedules: cache.New(ttl, 0)}
}

// EncryptBlock implements BlockCipher.
func (s *SoftwareCipher) EncryptBlock(key []byte, in [BlockSize]byte) ([BlockSize]byte, error) {
	var out [BlockSize]byte

	block, err := s.schedule(key)
	if err != nil {
		return out, err
	}

	block.Encrypt(out[:], in[:])
	return out, nil
}

func (s *SoftwareCipher) schedule(key []byte) (cipher.Block, error) {
	id := string(key)
	if v, ok := s.schedules.Get(id); ok {
		return v.(cipher.Block), nil
	}

	s.schedules.DeleteExpired()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	s.schedules.SetDefault(id, block)
	return block, nil
}

// Purge drops every cached key schedule.
func (s *SoftwareCipher) Purge() {
	s.schedules.Flush()
}

// Cached returns the number of cached key schedules.
func (s *SoftwareCipher) Cached() int {
	return s.schedules.ItemCount()
}

// NewBlockCipher returns the BlockCipher for the configured backend.
// The enclave backend is returned with an open session; the caller owns it
// and must Close it.
func NewBlockCipher(backend Backend, ttl time.Duration) (BlockCipher, error) {
	switch backend {
	case BackendSoftware, "":
		return NewSoftwareCipher(ttl), nil
	case BackendEnclave:
		ec := NewEnclaveCipher(NewLoopbackSession())
		if err := ec.Open(); err != nil {
			return nil, err
		}
		return ec, nil
	default:
		return nil, fmt.Errorf("%w: unknown cipher backend %q", ErrInvalidArgument, backend)
	}
}
