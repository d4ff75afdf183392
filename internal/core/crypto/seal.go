// Package crypto seals deployer keys at rest with a passphrase.
// This is part of the Functional Core - apart from reading random bytes it
// performs no I/O.
//
// Sealed keys are AES-256-GCM ciphertexts keyed by scrypt(passphrase, salt).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyTooShort is returned when the encryption key is too short.
	ErrKeyTooShort = errors.New("encryption key must be at least 32 bytes")

	// ErrEmptyPassphrase is returned when sealing or opening without a passphrase.
	ErrEmptyPassphrase = errors.New("passphrase is empty")

	// ErrNotSealed is returned when opening a value without the sealed prefix.
	ErrNotSealed = errors.New("value is not sealed")

	// ErrInvalidCiphertext is returned when decryption fails due to invalid ciphertext.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// SealedPrefix marks a sealed value.
const SealedPrefix = "sealed:v1:"

const saltSize = 16

// scrypt cost parameters (N, r, p) as used by interactive keystores.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// =============================================================================
// Key Derivation
// =============================================================================

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt.
// Same inputs always produce the same key.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
}

// =============================================================================
// AES-256-GCM Encryption
// =============================================================================

// Encrypt encrypts plaintext using AES-256-GCM with the provided key.
//
// The ciphertext format is: nonce (12 bytes) || encrypted data || auth tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Generate random nonce
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Encrypt and prepend nonce
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext that was encrypted with Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	// Extract nonce and ciphertext
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	// Decrypt and verify
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}

	// Use exactly 32 bytes for AES-256
	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// =============================================================================
// Sealed Values
// =============================================================================

// IsSealed reports whether s carries the sealed prefix.
func IsSealed(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), SealedPrefix)
}

// Seal encrypts secret under passphrase and returns a printable value
// suitable for config files and environment variables.
func Seal(secret []byte, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}

	ciphertext, err := Encrypt(secret, key)
	if err != nil {
		return "", err
	}

	return SealedPrefix + base64.StdEncoding.EncodeToString(append(salt, ciphertext...)), nil
}

// Open decrypts a value produced by Seal.
func Open(sealed, passphrase string) ([]byte, error) {
	sealed = strings.TrimSpace(sealed)
	if !strings.HasPrefix(sealed, SealedPrefix) {
		return nil, ErrNotSealed
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return nil, err
	}
	if len(raw) < saltSize {
		return nil, ErrInvalidCiphertext
	}

	key, err := DeriveKey(passphrase, raw[:saltSize])
	if err != nil {
		return nil, err
	}
	return Decrypt(raw[saltSize:], key)
}
