// Package crypto provides the server-side encryption used to protect
// stored provider credentials. It implements XChaCha20-Poly1305 AEAD
// sealing with the nonce prepended to the ciphertext.
package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// CryptoService provides encryption and decryption operations using a server key.
type CryptoService struct {
	serverKey []byte
}

// NewCryptoService creates a new CryptoService instance with the provided server key.
// The key should be at least 32 bytes for secure XChaCha20-Poly1305 encryption.
func NewCryptoService(key []byte) *CryptoService {
	return &CryptoService{serverKey: key}
}

// Encrypt encrypts plaintext using XChaCha20-Poly1305 with a random nonce.
// Returns the nonce prepended to the ciphertext.
func (c *CryptoService) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.serverKey[:32])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// Decrypt decrypts ciphertext that was encrypted with Encrypt.
// Expects the nonce to be prepended to the ciphertext.
func (c *CryptoService) Decrypt(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.serverKey[:32])
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:aead.NonceSize()]
	ciphertext = ciphertext[aead.NonceSize():]

	return aead.Open(nil, nonce, ciphertext, nil)
}
