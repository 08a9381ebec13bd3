package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const keySize = 32

// derivationSalt is fixed so a passphrase master key always derives the same
// vault key. Changing it orphans every credential already at rest.
var derivationSalt = []byte("calsync.token-vault.v1")

var (
	ErrUnknownAlgorithm = errors.New("unknown encryption algorithm")
	ErrDecryptFailed    = errors.New("failed to decrypt value")
)

// Cipher seals token material with AES-256-GCM. Every encryption draws a
// fresh random nonce; a nonce is never reused under the same key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from the configured master key. A base64-encoded
// 32-byte value is used directly; anything else is treated as a passphrase
// and stretched with argon2id.
func NewCipher(masterKey string) (*Cipher, error) {
	if masterKey == "" {
		return nil, errors.New("master key is empty")
	}

	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil || len(key) != keySize {
		key = argon2.IDKey([]byte(masterKey), derivationSalt, 1, 64*1024, 4, keySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals the plaintext and returns the ciphertext and the nonce used
func (c *Cipher) Encrypt(plaintext string) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext = c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt opens a value previously sealed by Encrypt. Authentication failure
// (tampered ciphertext, wrong nonce, wrong key) returns ErrDecryptFailed.
func (c *Cipher) Decrypt(ciphertext, nonce []byte) (string, error) {
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
