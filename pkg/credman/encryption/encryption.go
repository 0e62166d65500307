// Package encryption seals vault values with AES-256-GCM and derives the
// vault's purpose-bound subkeys.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const gcmPrefix = "gcm1"

var nonceReader io.Reader = rand.Reader

var errShortCiphertext = errors.New("ciphertext too short")

// Cipher seals values under one key. The output layout is
// "gcm1" | nonce | ciphertext+tag.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(nonceReader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(gcmPrefix)+len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, gcmPrefix...)
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, plaintext, nil), nil
}

func (c *Cipher) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < len(gcmPrefix) || string(ciphertext[:len(gcmPrefix)]) != gcmPrefix {
		return nil, fmt.Errorf("unknown ciphertext format")
	}
	body := ciphertext[len(gcmPrefix):]
	nonceSize := c.aead.NonceSize()
	if len(body) < nonceSize {
		return nil, errShortCiphertext
	}
	return c.aead.Open(nil, body[:nonceSize], body[nonceSize:], nil)
}

// DeriveKey derives a 32-byte subkey of master for purpose with
// HKDF-SHA256.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) == 0 {
		return nil, errors.New("empty master key")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(purpose)), key); err != nil {
		return nil, err
	}
	return key, nil
}
