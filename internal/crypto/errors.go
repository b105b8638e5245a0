package crypto

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidArgument is returned for malformed key or IV sizes and
	// malformed subsample layouts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfBounds is returned when the source or destination buffer is
	// shorter than the total length declared by the subsamples.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrCipherUnavailable is returned when the block cipher primitive fails
	// or cannot be reached. Any output written so far must be discarded.
	ErrCipherUnavailable = errors.New("cipher unavailable")
)

// SubsampleError records which subsample a decryption failed on.
type SubsampleError struct {
	Index int
	Err   error
}

func (e *SubsampleError) Error() string {
	return fmt.Sprintf("subsample %d: %v", e.Index, e.Err)
}

func (e *SubsampleError) Unwrap() error {
	return e.Err
}
