package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// GenerateKey returns a new random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM. The nonce is prepended to the
// ciphertext in the returned buffer.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a buffer produced by Encrypt.
func Decrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// Service decrypts credentials stored in monitor configuration. Stored
// values are base64-encoded AES-256-GCM ciphertexts. When constructed
// without a key file the service passes values through unchanged, so
// deployments may keep plaintext credentials until a key is provisioned.
type Service struct {
	key []byte
}

// NewService loads the key file at path. An empty path yields a
// passthrough service.
func NewService(path string) (*Service, error) {
	if path == "" {
		return &Service{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode key file %s: %w", path, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key file %s: expected %d-byte key, got %d", path, KeySize, len(key))
	}
	return &Service{key: key}, nil
}

// NewServiceWithKey wraps an in-memory key. Used by tests and tooling.
func NewServiceWithKey(key []byte) *Service {
	return &Service{key: key}
}

// HasKey reports whether the service holds a decryption key.
func (s *Service) HasKey() bool {
	return len(s.key) > 0
}

// Encrypt seals a plaintext credential into its stored form.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if !s.HasKey() {
		return plaintext, nil
	}
	sealed, err := Encrypt([]byte(plaintext), s.key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt recovers a plaintext credential from its stored form.
func (s *Service) Decrypt(stored string) (string, error) {
	if !s.HasKey() || stored == "" {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decode stored credential: %w", err)
	}
	plaintext, err := Decrypt(raw, s.key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
