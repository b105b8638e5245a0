package license

import (
	"encoding/base64"
	"fmt"

	"github.com/clearkeydrm/ckcli/internal/models"
)

// SessionTemporary is the only ClearKey session type requested.
const SessionTemporary = "temporary"

// Request is a ClearKey license request.
type Request struct {
	KIDs []string `json:"kids"`
	Type string   `json:"type"`
}

// JSONWebKey is a symmetric key in a ClearKey license response.
type JSONWebKey struct {
	Kty string `json:"kty"`
	KID string `json:"kid"`
	K   string `json:"k"`
}

// Response is a ClearKey license response, a JWK set.
type Response struct {
	Keys []JSONWebKey `json:"keys"`
	Type string       `json:"type,omitempty"`
}

// NewRequest builds a license request for kids.
func NewRequest(kids []models.KeyID) Request {
	req := Request{KIDs: make([]string, len(kids)), Type: SessionTemporary}
	for i, kid := range kids {
		req.KIDs[i] = encodeB64URL(kid[:])
	}
	return req
}

// decodeKey converts a JWK into a KID and raw key.
func (k JSONWebKey) decodeKey() (models.KeyID, []byte, error) {
	var kid models.KeyID

	if k.Kty != "oct" {
		return kid, nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}

	rawKID, err := decodeB64URL(k.KID)
	if err != nil {
		return kid, nil, fmt.Errorf("invalid kid %q: %w", k.KID, err)
	}
	if len(rawKID) != models.KeyIDSize {
		return kid, nil, fmt.Errorf("invalid kid %q: must be %d bytes", k.KID, models.KeyIDSize)
	}
	copy(kid[:], rawKID)

	key, err := decodeB64URL(k.K)
	if err != nil {
		return kid, nil, fmt.Errorf("invalid key for %s: %w", kid, err)
	}

	return kid, key, nil
}

func encodeB64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeB64URL accepts padded and unpadded base64url.
func decodeB64URL(s string) ([]byte, error) {
	for len(s)%4 != 0 {
		s += "="
	}
	return base64.URLEncoding.DecodeString(s)
}
