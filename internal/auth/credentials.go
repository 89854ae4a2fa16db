package auth

import (
	"errors"
	"fmt"

	"github.com/equiptrack/maintsync/internal/kvstore"
)

// RememberCredentials keeps the username in the plain store and the password
// in the secure store for the login form.
func (m *Manager) RememberCredentials(username, password string) error {
	if err := m.store.Set(kvstore.KeyRememberedUsername, username); err != nil {
		return fmt.Errorf("failed to remember username: %w", err)
	}
	if err := m.secure.Set(kvstore.KeyRememberedPassword, password); err != nil {
		return fmt.Errorf("failed to remember password: %w", err)
	}
	return nil
}

// RememberedCredentials returns what RememberCredentials stored. ok is false
// when nothing is remembered.
func (m *Manager) RememberedCredentials() (username, password string, ok bool, err error) {
	username, err = m.store.GetString(kvstore.KeyRememberedUsername)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	password, err = m.secure.GetString(kvstore.KeyRememberedPassword)
	if errors.Is(err, kvstore.ErrNotFound) {
		return username, "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return username, password, true, nil
}

// ForgetCredentials removes remembered credentials.
func (m *Manager) ForgetCredentials() error {
	return errors.Join(
		m.store.Remove(kvstore.KeyRememberedUsername),
		m.secure.Remove(kvstore.KeyRememberedPassword),
	)
}
