// Package secretbox encrypts short configuration secrets at rest with
// AES-256-GCM. Ciphertexts are encoded as nonce_hex:tag_hex:ciphertext_hex.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/jcq/jcq-api/internal/pkg/apperror"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

var (
	ErrInvalidKey          = apperror.New(apperror.KindConfiguration, "ENCRYPTION_KEY_INVALID", "encryption key must be 64 hex characters")
	ErrMalformedCiphertext = apperror.New(apperror.KindIntegrity, "CIPHERTEXT_MALFORMED", "ciphertext is malformed")
	ErrTampered            = apperror.New(apperror.KindIntegrity, "CIPHERTEXT_TAMPERED", "ciphertext failed authentication")
)

// Box holds the AEAD for one key.
type Box struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a Box from a 64-character hex key.
func New(hexKey string) (*Box, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperror.Wrap(ErrInvalidKey, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, apperror.Wrap(ErrInvalidKey, err)
	}
	return &Box{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(b.rand, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := b.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt verifies and opens a value produced by Encrypt. Any modification
// of nonce, tag or ciphertext fails with an integrity error.
func (b *Box) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", apperror.WithMessage(ErrMalformedCiphertext, fmt.Sprintf("expected 3 fields, got %d", len(parts)))
	}

	nonce, err := decodeField(parts[0])
	if err != nil || len(nonce) != NonceSize {
		return "", apperror.WithMessage(ErrMalformedCiphertext, "invalid nonce")
	}
	tag, err := decodeField(parts[1])
	if err != nil || len(tag) != TagSize {
		return "", apperror.WithMessage(ErrMalformedCiphertext, "invalid tag")
	}
	ct, err := decodeField(parts[2])
	if err != nil {
		return "", apperror.WithMessage(ErrMalformedCiphertext, "invalid ciphertext")
	}

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperror.Wrap(ErrTampered, err)
	}
	return string(plaintext), nil
}

// decodeField accepts only the lowercase hex Encrypt emits, so every
// character of a stored value is significant.
func decodeField(field string) ([]byte, error) {
	for i := 0; i < len(field); i++ {
		c := field[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, fmt.Errorf("invalid hex character %q at %d", c, i)
		}
	}
	return hex.DecodeString(field)
}
