package keystore

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/clearkeydrm/ckcli/internal/models"
)

// EnvStore is a read-only KeyStore backed by the CKCLI_KEYS environment
// variable. The variable is read on every call.
type EnvStore struct {
	variable string
}

// NewEnvStore creates an EnvStore reading EnvKeys.
func NewEnvStore() *EnvStore {
	return &EnvStore{variable: EnvKeys}
}

// Get retrieves a key from the environment.
func (s *EnvStore) Get(kid models.KeyID) (*models.ContentKey, error) {
	keys, err := ParseKeyList(os.Getenv(s.variable))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.variable, err)
	}

	for i := range keys {
		if keys[i].KID == kid {
			return &keys[i], nil
		}
	}

	return nil, fmt.Errorf("%w: kid %s", ErrKeyNotFound, kid)
}

// Save is not supported.
func (s *EnvStore) Save(*models.ContentKey) error {
	return ErrReadOnly
}

// Delete is not supported.
func (s *EnvStore) Delete(models.KeyID) error {
	return ErrReadOnly
}

// List returns the KIDs present in the environment.
func (s *EnvStore) List() ([]models.KeyID, error) {
	keys, err := ParseKeyList(os.Getenv(s.variable))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.variable, err)
	}

	kids := make([]models.KeyID, len(keys))
	for i, k := range keys {
		kids[i] = k.KID
	}
	return kids, nil
}

// ParseKeyList parses "kid:key[,kid:key]" hex pairs and computes a check
// value for each key.
func ParseKeyList(s string) ([]models.ContentKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var keys []models.ContentKey
	for _, pair := range strings.Split(s, ",") {
		kidHex, keyHex, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("expected kid:key, got %q", pair)
		}

		kid, err := models.ParseKeyID(kidHex)
		if err != nil {
			return nil, err
		}

		raw, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid key for %s: %w", kid, err)
		}

		key, err := NewContentKey(kid, raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}

	return keys, nil
}
