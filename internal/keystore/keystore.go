package keystore

import (
	"errors"
	"fmt"

	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/models"
)

const (
	// EnvKeys holds comma separated kid:key hex pairs.
	EnvKeys = "CKCLI_KEYS"
	// DefaultService is the keychain service name.
	DefaultService = "ckcli"
)

// Common errors
var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrCheckValueMismatch = errors.New("key check value mismatch")
	ErrReadOnly           = errors.New("key store is read-only")
)

// KeyStore defines the interface for content key persistence.
type KeyStore interface {
	// Get retrieves the key for kid.
	Get(kid models.KeyID) (*models.ContentKey, error)
	// Save persists a key.
	Save(key *models.ContentKey) error
	// Delete removes the key for kid.
	Delete(kid models.KeyID) error
	// List returns the IDs of all stored keys.
	List() ([]models.KeyID, error)
}

// NewContentKey builds a ContentKey and computes its check value.
func NewContentKey(kid models.KeyID, key []byte) (*models.ContentKey, error) {
	if len(key) != crypto.AES128KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", crypto.ErrInvalidArgument, crypto.AES128KeySize, len(key))
	}

	kcv, err := crypto.KeyCheckValue(key, kid[:])
	if err != nil {
		return nil, err
	}

	return &models.ContentKey{
		KID:        kid,
		Key:        append([]byte(nil), key...),
		CheckValue: kcv,
	}, nil
}

// Verify checks the key against its stored check value. Keys without a
// check value are accepted.
func Verify(key *models.ContentKey) error {
	if len(key.CheckValue) == 0 {
		return nil
	}

	ok, err := crypto.VerifyKeyCheckValue(key.Key, key.KID[:], key.CheckValue)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: kid %s", ErrCheckValueMismatch, key.KID)
	}

	return nil
}

// Chain looks keys up in several stores in order.
type Chain []KeyStore

// Default returns the lookup order used by the CLI and the server:
// environment first, then the keychain.
func Default(service string) Chain {
	return Chain{NewEnvStore(), NewKeychainStore(service)}
}

// Get returns the first verified key found for kid.
func (c Chain) Get(kid models.KeyID) (*models.ContentKey, error) {
	for _, store := range c {
		key, err := store.Get(kid)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := Verify(key); err != nil {
			return nil, err
		}
		return key, nil
	}

	return nil, fmt.Errorf("%w: kid %s", ErrKeyNotFound, kid)
}

// Lookup retrieves a verified key from the environment or the keychain.
func Lookup(kid models.KeyID, service string) (*models.ContentKey, error) {
	return Default(service).Get(kid)
}
