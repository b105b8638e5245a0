package crypto

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

// ctrState is the keystream position of a single decrypt call. It carries
// over subsample boundaries and is discarded when the call returns.
type ctrState struct {
	cipher    BlockCipher
	key       []byte
	counter   [BlockSize]byte
	keystream [BlockSize]byte
	// offset is how many bytes of keystream are used; 0 means refill.
	offset int
}

func newCTRState(c BlockCipher, key, iv []byte) *ctrState {
	s := &ctrState{cipher: c, key: key}
	copy(s.counter[:], iv)
	return s
}

// xor transforms src into dst with the running keystream. dst must be at
// least as long as src.
func (s *ctrState) xor(dst, src []byte) error {
	for len(src) > 0 {
		if s.offset == 0 {
			ks, err := s.cipher.EncryptBlock(s.key, s.counter)
			if err != nil {
				if !errors.Is(err, ErrCipherUnavailable) {
					err = fmt.Errorf("%w: %w", ErrCipherUnavailable, err)
				}
				return err
			}

			s.keystream = ks
			incrementCounter(&s.counter)
		}

		n := subtle.XORBytes(dst, src, s.keystream[s.offset:])
		s.offset = (s.offset + n) % BlockSize
		dst, src = dst[n:], src[n:]
	}

	return nil
}

// incrementCounter adds one to a big-endian counter, wrapping at 2^128.
func incrementCounter(ctr *[BlockSize]byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			break
		}
	}
}

// DecryptOptions configures a SubsampleDecryptor.
type DecryptOptions struct {
	// StrictSubsamples rejects (0, 0) subsamples instead of skipping them.
	StrictSubsamples bool
}

// DecryptOption is a functional option for configuring decryption.
type DecryptOption func(*DecryptOptions)

// WithStrictSubsamples makes (0, 0) subsamples an ErrInvalidArgument.
func WithStrictSubsamples() DecryptOption {
	return func(o *DecryptOptions) {
		o.StrictSubsamples = true
	}
}

// SubsampleDecryptor applies AES-CTR to the encrypted spans of a buffer
// split into subsamples. The keystream runs continuously over all
// encrypted bytes of one call, regardless of where subsample boundaries
// fall. Clear spans are copied and do not advance the keystream.
//
// A SubsampleDecryptor holds no per-call state and is safe for concurrent
// use.
type SubsampleDecryptor struct {
	cipher  BlockCipher
	options DecryptOptions
}

// NewSubsampleDecryptor creates a decryptor on top of the given BlockCipher.
func NewSubsampleDecryptor(c BlockCipher, opts ...DecryptOption) *SubsampleDecryptor {
	d := &SubsampleDecryptor{cipher: c}
	for _, opt := range opts {
		opt(&d.options)
	}
	return d
}

// Decrypt decrypts src into a newly allocated buffer and returns it with
// the number of bytes written.
func (d *SubsampleDecryptor) Decrypt(key, iv, src []byte, subsamples []Subsample) ([]byte, int, error) {
	total, err := d.validate(key, iv, src, subsamples)
	if err != nil {
		return nil, 0, err
	}

	dst := make([]byte, total)
	n, err := d.transform(key, iv, dst, src, subsamples)
	if err != nil {
		return nil, 0, err
	}

	return dst, n, nil
}

// DecryptTo decrypts src into dst and returns the number of bytes written.
// dst and src may be the same slice for in-place decryption; otherwise they
// must not overlap. On error the contents of dst are undefined.
func (d *SubsampleDecryptor) DecryptTo(key, iv, dst, src []byte, subsamples []Subsample) (int, error) {
	total, err := d.validate(key, iv, src, subsamples)
	if err != nil {
		return 0, err
	}

	if uint64(len(dst)) < total {
		return 0, fmt.Errorf("%w: destination has %d bytes, subsamples need %d", ErrOutOfBounds, len(dst), total)
	}

	return d.transform(key, iv, dst, src, subsamples)
}

// Encrypt is Decrypt: CTR mode is its own inverse.
func (d *SubsampleDecryptor) Encrypt(key, iv, src []byte, subsamples []Subsample) ([]byte, int, error) {
	return d.Decrypt(key, iv, src, subsamples)
}

// EncryptTo is DecryptTo: CTR mode is its own inverse.
func (d *SubsampleDecryptor) EncryptTo(key, iv, dst, src []byte, subsamples []Subsample) (int, error) {
	return d.DecryptTo(key, iv, dst, src, subsamples)
}

func (d *SubsampleDecryptor) validate(key, iv, src []byte, subsamples []Subsample) (uint64, error) {
	if d.cipher == nil {
		return 0, fmt.Errorf("%w: no block cipher configured", ErrCipherUnavailable)
	}

	if len(key) != AES128KeySize {
		return 0, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidArgument, AES128KeySize, len(key))
	}

	if len(iv) != BlockSize {
		return 0, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidArgument, BlockSize, len(iv))
	}

	if d.options.StrictSubsamples {
		for i, s := range subsamples {
			if s.Empty() {
				return 0, &SubsampleError{Index: i, Err: fmt.Errorf("%w: empty subsample", ErrInvalidArgument)}
			}
		}
	}

	total := TotalLength(subsamples)
	if uint64(len(src)) < total {
		return 0, fmt.Errorf("%w: source has %d bytes, subsamples need %d", ErrOutOfBounds, len(src), total)
	}

	return total, nil
}

func (d *SubsampleDecryptor) transform(key, iv, dst, src []byte, subsamples []Subsample) (int, error) {
	state := newCTRState(d.cipher, key, iv)
	offset := 0

	for i, s := range subsamples {
		if s.Clear > 0 {
			n := int(s.Clear)
			copy(dst[offset:offset+n], src[offset:offset+n])
			offset += n
		}

		if s.Encrypted > 0 {
			n := int(s.Encrypted)
			if err := state.xor(dst[offset:offset+n], src[offset:offset+n]); err != nil {
				return 0, &SubsampleError{Index: i, Err: err}
			}
			offset += n
		}
	}

	return offset, nil
}
