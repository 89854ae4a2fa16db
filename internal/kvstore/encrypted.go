package kvstore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrDecrypt is returned when a stored value cannot be opened with the
// configured key.
var ErrDecrypt = errors.New("stored value cannot be decrypted")

const encryptionInfo = "maintsync kvstore v1"

// EncryptedStore seals values before handing them to an inner store. It is
// used as the secure store where no OS keychain is available.
type EncryptedStore struct {
	inner Store
	aead  cipher.AEAD
}

// NewEncryptedStore derives an XChaCha20-Poly1305 key from secret.
func NewEncryptedStore(inner Store, secret string) (*EncryptedStore, error) {
	if secret == "" {
		return nil, errors.New("encryption key cannot be empty")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(encryptionInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	return &EncryptedStore{inner: inner, aead: aead}, nil
}

// GetString opens the sealed value for key
func (e *EncryptedStore) GetString(key string) (string, error) {
	sealed, err := e.inner.GetString(key)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < e.aead.NonceSize() {
		return "", ErrDecrypt
	}

	nonce, ciphertext := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
	// The key name is bound as additional data so values cannot be swapped.
	plain, err := e.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Set seals value and writes it to the inner store
func (e *EncryptedStore) Set(key, value string) error {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(value)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return e.inner.Set(key, base64.StdEncoding.EncodeToString(sealed))
}

// Remove deletes key from the inner store
func (e *EncryptedStore) Remove(key string) error {
	return e.inner.Remove(key)
}
