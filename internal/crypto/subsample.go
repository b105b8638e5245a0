package crypto

import (
	"fmt"
	"strconv"
	"strings"
)

// Subsample describes one segment of a partially encrypted buffer: Clear
// bytes passed through verbatim followed by Encrypted bytes.
type Subsample struct {
	Clear     uint32 `json:"clear"`
	Encrypted uint32 `json:"encrypted"`
}

// String formats the subsample as "clear:encrypted".
func (s Subsample) String() string {
	return fmt.Sprintf("%d:%d", s.Clear, s.Encrypted)
}

// Empty reports whether both lengths are zero.
func (s Subsample) Empty() bool {
	return s.Clear == 0 && s.Encrypted == 0
}

// TotalLength returns the sum of all clear and encrypted lengths.
func TotalLength(subsamples []Subsample) uint64 {
	var total uint64
	for _, s := range subsamples {
		total += uint64(s.Clear) + uint64(s.Encrypted)
	}
	return total
}

// EncryptedLength returns the sum of all encrypted lengths.
func EncryptedLength(subsamples []Subsample) uint64 {
	var total uint64
	for _, s := range subsamples {
		total += uint64(s.Encrypted)
	}
	return total
}

// KeystreamBlocks returns how many keystream blocks a layout consumes.
func KeystreamBlocks(subsamples []Subsample) uint64 {
	enc := EncryptedLength(subsamples)
	return (enc + BlockSize - 1) / BlockSize
}

// ParseSubsamples parses a layout written as "clear:encrypted" pairs
// separated by commas, e.g. "8:64,0:32". An empty string yields no
// subsamples.
func ParseSubsamples(s string) ([]Subsample, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	subsamples := make([]Subsample, 0, len(parts))

	for i, part := range parts {
		clearStr, encStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("%w: subsample %d: expected clear:encrypted, got %q", ErrInvalidArgument, i, part)
		}

		clear, err := strconv.ParseUint(strings.TrimSpace(clearStr), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: subsample %d: clear length: %v", ErrInvalidArgument, i, err)
		}

		enc, err := strconv.ParseUint(strings.TrimSpace(encStr), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: subsample %d: encrypted length: %v", ErrInvalidArgument, i, err)
		}

		subsamples = append(subsamples, Subsample{Clear: uint32(clear), Encrypted: uint32(enc)})
	}

	return subsamples, nil
}

// FormatSubsamples is the inverse of ParseSubsamples.
func FormatSubsamples(subsamples []Subsample) string {
	parts := make([]string, len(subsamples))
	for i, s := range subsamples {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}
