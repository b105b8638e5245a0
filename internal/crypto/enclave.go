package crypto

import (
	"crypto/aes"
	"errors"
	"fmt"
	"sync"
)

var errSessionClosed = errors.New("trusted session is not open")

// TrustedSession is the client side of a trusted execution environment that
// exposes single-block AES encryption. Keys are passed per call; the trusted
// side owns any key schedule.
type TrustedSession interface {
	// Open establishes the session.
	Open() error
	// EncryptBlock encrypts src into dst, both BlockSize bytes.
	EncryptBlock(key, dst, src []byte) error
	// Close tears the session down.
	Close() error
}

// EnclaveCipher implements BlockCipher on top of a TrustedSession. Every
// failure of the session surfaces as ErrCipherUnavailable.
type EnclaveCipher struct {
	mu      sync.RWMutex
	session TrustedSession
	open    bool
}

// NewEnclaveCipher creates an EnclaveCipher. The session is not opened.
func NewEnclaveCipher(session TrustedSession) *EnclaveCipher {
	return &EnclaveCipher{session: session}
}

// Open opens the underlying session. Opening an open cipher is a no-op.
func (e *EnclaveCipher) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open {
		return nil
	}

	if err := e.session.Open(); err != nil {
		return fmt.Errorf("%w: failed to open trusted session: %v", ErrCipherUnavailable, err)
	}

	e.open = true
	return nil
}

// Close closes the underlying session.
func (e *EnclaveCipher) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return nil
	}

	e.open = false
	return e.session.Close()
}

// EncryptBlock implements BlockCipher.
func (e *EnclaveCipher) EncryptBlock(key []byte, in [BlockSize]byte) ([BlockSize]byte, error) {
	var out [BlockSize]byte

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.open {
		return out, fmt.Errorf("%w: %v", ErrCipherUnavailable, errSessionClosed)
	}

	if err := e.session.EncryptBlock(key, out[:], in[:]); err != nil {
		return out, fmt.Errorf("%w: %v", ErrCipherUnavailable, err)
	}

	return out, nil
}

// LoopbackSession is an in-process TrustedSession. It behaves like a
// trusted application reached through a session (it refuses work while
// closed) but runs crypto/aes in the calling process. It is used where no
// hardware module is present and in tests.
type LoopbackSession struct {
	mu   sync.RWMutex
	open bool
}

// NewLoopbackSession creates a closed LoopbackSession.
func NewLoopbackSession() *LoopbackSession {
	return &LoopbackSession{}
}

// Open implements TrustedSession.
func (l *LoopbackSession) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = true
	return nil
}

// Close implements TrustedSession.
func (l *LoopbackSession) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = false
	return nil
}

// EncryptBlock implements TrustedSession.
func (l *LoopbackSession) EncryptBlock(key, dst, src []byte) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.open {
		return errSessionClosed
	}

	if len(dst) < BlockSize || len(src) < BlockSize {
		return fmt.Errorf("block must be %d bytes", BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}

	block.Encrypt(dst, src)
	return nil
}
