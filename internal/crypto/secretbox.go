package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	nonceSize  = chacha20poly1305.NonceSize // 12
	tagSize    = chacha20poly1305.Overhead  // 16
	minBlobLen = nonceSize + tagSize
)

// CryptoError represents an encryption/decryption failure. Callers must
// treat it as "reject message", never as a crash condition.
type CryptoError struct {
	Message string
}

func (e *CryptoError) Error() string {
	return e.Message
}

// IsCryptoError checks if an error is a CryptoError.
func IsCryptoError(err error) bool {
	var ce *CryptoError
	return errors.As(err, &ce)
}

// deriveKey hashes the shared pairing secret into a 256-bit AEAD key.
// The secret is the sole key material for the relationship's whole lifetime:
// no salt, no per-message derivation, no rotation.
func deriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Encrypt seals plaintext with ChaCha20-Poly1305 keyed by the shared secret.
// Wire format: nonce[12] + ciphertext + tag[16], base64-encoded. A fresh
// random nonce is generated per call.
func Encrypt(plaintext, secret string) (string, error) {
	aead, err := chacha20poly1305.New(deriveKey(secret))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)

	wire := make([]byte, 0, nonceSize+len(ciphertext))
	wire = append(wire, nonce...)
	wire = append(wire, ciphertext...)

	return base64.StdEncoding.EncodeToString(wire), nil
}

// Decrypt opens a blob produced by Encrypt. Returns a CryptoError on
// malformed input, tag mismatch, or wrong key.
func Decrypt(blobB64, secret string) (string, error) {
	wire, err := base64.StdEncoding.DecodeString(blobB64)
	if err != nil {
		return "", &CryptoError{Message: fmt.Sprintf("invalid base64 ciphertext: %v", err)}
	}

	if len(wire) < minBlobLen {
		return "", &CryptoError{Message: fmt.Sprintf("ciphertext too short: %d bytes, minimum %d", len(wire), minBlobLen)}
	}

	nonce := wire[:nonceSize]
	ciphertext := wire[nonceSize:]

	aead, err := chacha20poly1305.New(deriveKey(secret))
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &CryptoError{Message: "decryption failed: wrong key or tampered ciphertext"}
	}

	return string(plaintext), nil
}

// NewSecret generates a random pairing secret (64 hex characters).
func NewSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", buf), nil
}

// SecretsEqual compares two secrets in constant time. The length check runs
// first so a mismatch never leaks where the difference occurs.
func SecretsEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
