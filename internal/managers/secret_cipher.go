package managers

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SecretCipher encrypts automation credential secrets with a service-held
// symmetric key. The secrets are recoverable on purpose: the dispatcher must
// present the plaintext at fire time, so a one-way hash (as used for normal
// user API keys) cannot work here.
type SecretCipher struct {
	key []byte
}

// NewSecretCipher builds a cipher from a base64-encoded 32-byte key.
func NewSecretCipher(base64Key string) (*SecretCipher, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode service key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("service key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &SecretCipher{key: key}, nil
}

// GenerateServiceKey produces a fresh base64-encoded cipher key, for setup.
func GenerateServiceKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate service key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt seals plaintext with a random nonce. The nonce is prepended to the
// returned ciphertext.
func (c *SecretCipher) Encrypt(plaintext string) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *SecretCipher) Decrypt(ciphertext []byte) (string, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	if len(ciphertext) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}

	return string(plaintext), nil
}
