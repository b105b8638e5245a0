package keystore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/zalando/go-keyring"
)

// keychainIndex is the item that lists every stored KID.
const keychainIndex = "index"

// KeychainStore implements KeyStore using the OS keychain. Each key is one
// item named by its KID holding "key:kcv" in hex.
type KeychainStore struct {
	service string
}

// NewKeychainStore creates a new KeychainStore. An empty service uses
// DefaultService.
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultService
	}
	return &KeychainStore{service: service}
}

// Get retrieves a key from the keychain.
func (s *KeychainStore) Get(kid models.KeyID) (*models.ContentKey, error) {
	value, err := keyring.Get(s.service, kid.String())
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: kid %s", ErrKeyNotFound, kid)
	}
	if err != nil {
		return nil, err
	}

	keyHex, kcvHex, _ := strings.Cut(value, ":")

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt keychain entry for %s: %w", kid, err)
	}

	kcv, err := hex.DecodeString(kcvHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt keychain entry for %s: %w", kid, err)
	}

	return &models.ContentKey{KID: kid, Key: key, CheckValue: kcv}, nil
}

// Save stores a key in the keychain and records it in the index.
func (s *KeychainStore) Save(key *models.ContentKey) error {
	value := key.KeyHex() + ":" + key.CheckValueHex()
	if err := keyring.Set(s.service, key.KID.String(), value); err != nil {
		return err
	}

	kids, err := s.List()
	if err != nil {
		return err
	}

	for _, kid := range kids {
		if kid == key.KID {
			return nil
		}
	}

	if err := s.writeIndex(append(kids, key.KID)); err != nil {
		// Try to clean up the key if the index update fails
		_ = keyring.Delete(s.service, key.KID.String())
		return err
	}

	return nil
}

// Delete removes a key from the keychain. Deleting a missing key returns
// ErrKeyNotFound.
func (s *KeychainStore) Delete(kid models.KeyID) error {
	err := keyring.Delete(s.service, kid.String())
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: kid %s", ErrKeyNotFound, kid)
	}
	if err != nil {
		return err
	}

	kids, err := s.List()
	if err != nil {
		return err
	}

	kept := kids[:0]
	for _, k := range kids {
		if k != kid {
			kept = append(kept, k)
		}
	}

	return s.writeIndex(kept)
}

// List returns the stored KIDs in sorted order.
func (s *KeychainStore) List() ([]models.KeyID, error) {
	index, err := keyring.Get(s.service, keychainIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var kids []models.KeyID
	for _, field := range strings.Split(index, ",") {
		if field == "" {
			continue
		}

		kid, err := models.ParseKeyID(field)
		if err != nil {
			return nil, fmt.Errorf("corrupt keychain index: %w", err)
		}
		kids = append(kids, kid)
	}

	return kids, nil
}

func (s *KeychainStore) writeIndex(kids []models.KeyID) error {
	if len(kids) == 0 {
		err := keyring.Delete(s.service, keychainIndex)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}

	fields := make([]string, len(kids))
	for i, kid := range kids {
		fields[i] = kid.String()
	}
	sort.Strings(fields)

	return keyring.Set(s.service, keychainIndex, strings.Join(fields, ","))
}
