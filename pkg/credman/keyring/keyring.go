// Package keyring talks to the operating system's secret store. It keeps
// the vault key and hands out the safe-storage secrets Chromium browsers
// encrypt saved logins with.
package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyLength is the size of the vault key in bytes.
const KeyLength = 32

// Keyring stores the vault key in the OS keyring.
type Keyring struct {
	AppName  string
	KeyField string
}

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
	randRead      = rand.Read
)

func NewKeyring() *Keyring {
	return &Keyring{
		AppName:  "warpimport",
		KeyField: "vault",
	}
}

func (k *Keyring) SetKey() ([]byte, error) {
	key := make([]byte, KeyLength)
	if _, err := randRead(key); err != nil {
		return nil, err
	}
	if err := keyringSet(k.AppName, k.KeyField, hex.EncodeToString(key)); err != nil {
		return nil, classify(err)
	}
	return key, nil
}

// GetKey returns the stored vault key. A missing entry is reported as a
// SystemError with CodeNotFound.
func (k *Keyring) GetKey() ([]byte, error) {
	value, err := keyringGet(k.AppName, k.KeyField)
	if err != nil {
		return nil, classify(err)
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid key format: %w", err)
	}
	if len(key) != KeyLength {
		return nil, fmt.Errorf("invalid key length: expected %d, got %d", KeyLength, len(key))
	}
	return key, nil
}

// DeleteKey removes the vault key. Deleting a missing key is an error
// IsNotFound recognizes.
func (k *Keyring) DeleteKey() error {
	if err := keyringDelete(k.AppName, k.KeyField); err != nil {
		return classify(err)
	}
	return nil
}

// IsNotFound reports whether err means the secret store has no entry.
func IsNotFound(err error) bool {
	var sysErr *SystemError
	return errors.As(err, &sysErr) && sysErr.Code == CodeNotFound
}
