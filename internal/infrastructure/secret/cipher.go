// Package secret encrypts tenant credentials at rest.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// MinKeyLength is the minimum length of the master key
	MinKeyLength = 32

	formatPrefix = "v1:"
	hkdfInfo     = "marketplace/tenant-credentials/v1"
)

// Errors for the credential cipher
var (
	ErrKeyTooShort       = errors.New("secret: master key must be at least 32 characters")
	ErrMalformedCipher   = errors.New("secret: malformed ciphertext")
	ErrDecryptionFailure = errors.New("secret: decryption failed")
)

// Cipher is an AES-256-GCM cipher whose key is derived from a master key
// with HKDF-SHA256. Ciphertexts are bound to an associated value (the tenant
// domain) so they cannot be moved between records.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the data key from masterKey
func NewCipher(masterKey string) (*Cipher, error) {
	if len(masterKey) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(masterKey), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("secret: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret: create block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret: create GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext bound to associated
func (c *Cipher) Encrypt(associated, plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secret: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(associated))
	return formatPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt with the same associated value
func (c *Cipher) Decrypt(associated, ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, formatPrefix)
	if !ok {
		return "", ErrMalformedCipher
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedCipher
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", ErrMalformedCipher
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(associated))
	if err != nil {
		return "", ErrDecryptionFailure
	}
	return string(plaintext), nil
}
