package cenc

import (
	"errors"

	"github.com/clearkeydrm/ckcli/internal/keystore"
)

// Common errors
var (
	// ErrKeyNotFound is returned when no key is known for a track's KID.
	ErrKeyNotFound = keystore.ErrKeyNotFound
	// ErrUnsupportedScheme is returned for protection schemes other than cenc.
	ErrUnsupportedScheme = errors.New("unsupported protection scheme")
	// ErrMissingSampleInfo is returned when a protected fragment lacks the
	// boxes needed to locate or decrypt its samples.
	ErrMissingSampleInfo = errors.New("missing sample encryption info")
	// ErrNotFragmented is returned for protected files without movie
	// fragments. Only fragmented MP4 carries per-sample senc info.
	ErrNotFragmented = errors.New("protected mp4 is not fragmented")
	// ErrMalformedInput is returned when the input cannot be decoded as MP4.
	ErrMalformedInput = errors.New("malformed mp4")
)
