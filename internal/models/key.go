package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyIDSize is the size of a CENC key identifier.
const KeyIDSize = 16

// KeyID is a 16-byte content key identifier.
type KeyID [KeyIDSize]byte

// ParseKeyID parses a 32-character hex key ID. Dashes are ignored so UUID
// notation is accepted.
func ParseKeyID(s string) (KeyID, error) {
	var kid KeyID

	raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	if err != nil {
		return kid, fmt.Errorf("invalid key id %q: %w", s, err)
	}
	if len(raw) != KeyIDSize {
		return kid, fmt.Errorf("invalid key id %q: must be %d bytes, got %d", s, KeyIDSize, len(raw))
	}

	copy(kid[:], raw)
	return kid, nil
}

// String returns the key ID as lowercase hex.
func (k KeyID) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether the key ID is all zeros.
func (k KeyID) IsZero() bool {
	return k == KeyID{}
}

// ContentKey is a content key together with its identifier.
type ContentKey struct {
	KID        KeyID  `json:"kid"`
	Key        []byte `json:"key"`
	CheckValue []byte `json:"kcv,omitempty"` // truncated CMAC of KID under Key
}

// KeyHex returns the key as a hexadecimal string.
func (c ContentKey) KeyHex() string {
	return hex.EncodeToString(c.Key)
}

// CheckValueHex returns the key check value as a hexadecimal string.
func (c ContentKey) CheckValueHex() string {
	return hex.EncodeToString(c.CheckValue)
}

// Masked returns the key hex with all but the last four characters hidden.
func (c ContentKey) Masked() string {
	h := c.KeyHex()
	if len(h) <= 4 {
		return h
	}
	return strings.Repeat("•", len(h)-4) + h[len(h)-4:]
}
