// Package kvstore provides the on-device key-value stores that hold settings,
// cached payloads, remembered credentials and the auth token.
//
// All stores share the Store contract. Values are plain strings; callers that
// need expiry or structure encode it inside the value (usually as JSON).
package kvstore

import (
	"errors"
)

// ErrNotFound is returned when a key doesn't exist
var ErrNotFound = errors.New("key not found in store")

// Keys of the persisted state layout.
const (
	KeyAuthToken          = "auth_token_secure"
	KeyAuthExpiresAt      = "auth_expiresAt"
	KeyAuthUser           = "auth_user"
	KeyAllData            = "allData"
	KeyAPIBase            = "api_base"
	KeySheetID            = "sheet_id"
	KeyThemeMode          = "theme_mode"
	KeyDeviceID           = "device_id"
	KeyRememberedUsername = "remembered_username"
	KeyRememberedPassword = "remembered_password"

	// AnalyticsPrefix namespaces per-event counters.
	AnalyticsPrefix = "analytics:"

	// ServiceName is the keychain service the secure store writes under.
	ServiceName = "maintsync"
)

// Store is a durable string dictionary. Implementations must be safe for
// concurrent use.
type Store interface {
	// GetString returns the value for key or ErrNotFound.
	GetString(key string) (string, error)
	Set(key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// GetOrDefault returns the stored value, or def when the key is missing or the
// read fails.
func GetOrDefault(s Store, key, def string) string {
	v, err := s.GetString(key)
	if err != nil {
		return def
	}
	return v
}
