package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const sealedPrefix = "aes:"

// TokenSealer encrypts OAuth tokens at rest with AES-GCM. A nil sealer stores
// them as they are.
type TokenSealer struct {
	gcm cipher.AEAD
}

// NewTokenSealer returns nil for an empty key. The key must be 16, 24 or 32 bytes.
func NewTokenSealer(key string) (*TokenSealer, error) {
	if key == "" {
		return nil, nil
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("invalid token key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TokenSealer{gcm: gcm}, nil
}

func (t *TokenSealer) Seal(plainText string) (string, error) {
	if t == nil {
		return plainText, nil
	}
	nonce := make([]byte, t.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	cipherText := t.gcm.Seal(nonce, nonce, []byte(plainText), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(cipherText), nil
}

// Open decrypts a sealed value. Values stored before a key was configured
// are returned unchanged.
func (t *TokenSealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if t == nil {
		return "", fmt.Errorf("token is encrypted but no token key is configured")
	}
	cipherText, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", err
	}
	nonceSize := t.gcm.NonceSize()
	if len(cipherText) < nonceSize {
		return "", fmt.Errorf("invalid cipher text length")
	}
	nonce, cipherText := cipherText[:nonceSize], cipherText[nonceSize:]
	plainText, err := t.gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return "", err
	}
	return string(plainText), nil
}
