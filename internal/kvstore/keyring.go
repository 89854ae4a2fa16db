package kvstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore uses the OS keychain. It is the default secure store.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keychain-backed store under ServiceName
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: ServiceName}
}

// GetString retrieves a value from the system keychain
func (s *KeyringStore) GetString(key string) (string, error) {
	value, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to retrieve from keychain: %w", err)
	}
	return value, nil
}

// Set stores a value in the system keychain
func (s *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("failed to store in keychain: %w", err)
	}
	return nil
}

// Remove deletes a value from the system keychain
func (s *KeyringStore) Remove(key string) error {
	err := keyring.Delete(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete from keychain: %w", err)
	}
	return nil
}
