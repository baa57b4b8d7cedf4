// Package secret encrypts the GitLab access token at rest.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// blobVersion prefixes every ciphertext and is bound as associated data.
const blobVersion byte = 0x01

var hkdfInfo = []byte("semsearch.gitlab-token.v1")

// ErrDecrypt is returned for ciphertext that fails authentication.
var ErrDecrypt = errors.New("secret: decrypt failed")

// Cipher performs symmetric encryption of short secrets with
// XChaCha20-Poly1305 under a key derived from a configured secret.
type Cipher struct {
	key []byte
}

// NewCipher derives the encryption key from secret via HKDF-SHA256.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("secret: empty encryption key")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("secret: derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt returns base64url(version || nonce || ciphertext+tag). The empty
// string encrypts to the empty string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("secret: new cipher: %w", err)
	}
	out := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	out[0] = blobVersion
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}
	out = aead.Seal(out, out[1:], []byte(plaintext), out[:1])
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt inverts Encrypt. The empty string decrypts to the empty string.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	blob, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(blob) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead || blob[0] != blobVersion {
		return "", ErrDecrypt
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("secret: new cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], blob[:1])
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
