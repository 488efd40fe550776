package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// KeySize is the required AES-256 key size in bytes.
const KeySize = 32

// Blob is an encrypted JSON value as persisted to disk.
// IV and EncryptedData are hex-encoded; the GCM authentication tag is
// appended to the ciphertext inside EncryptedData.
type Blob struct {
	IV            string `json:"iv"`
	EncryptedData string `json:"encryptedData"`
}

// Store encrypts and decrypts JSON-serializable values with AES-256-GCM.
type Store struct {
	aead cipher.AEAD
}

// NewStore creates a Store from the provisioned key material.
// The key may be base64-encoded or raw; the first 32 bytes of the decoded
// value are used. Shorter keys are rejected - this is a fatal startup
// condition, not something to retry.
func NewStore(secret string) (*Store, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption key is not configured")
	}

	key := []byte(secret)
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil && len(decoded) >= KeySize {
		key = decoded
	}
	if len(key) < KeySize {
		return nil, fmt.Errorf("encryption key must be at least %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key[:KeySize])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Store{aead: aead}, nil
}

// Encrypt serializes v to JSON and encrypts it.
// A fresh random nonce is generated for every call; nonce reuse would break
// confidentiality under GCM.
func (s *Store) Encrypt(v any) (*Blob, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize value: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nil, nonce, plaintext, nil)

	return &Blob{
		IV:            hex.EncodeToString(nonce),
		EncryptedData: hex.EncodeToString(ciphertext),
	}, nil
}

// Decrypt verifies and decrypts a Blob produced by Encrypt and unmarshals
// the plaintext into v. Tag mismatch, truncated data, or a wrong key all
// fail closed.
func (s *Store) Decrypt(blob *Blob, v any) error {
	if blob == nil {
		return fmt.Errorf("encrypted blob is empty")
	}

	nonce, err := hex.DecodeString(blob.IV)
	if err != nil {
		return fmt.Errorf("invalid iv encoding: %w", err)
	}
	if len(nonce) != s.aead.NonceSize() {
		return fmt.Errorf("invalid iv length %d", len(nonce))
	}

	ciphertext, err := hex.DecodeString(blob.EncryptedData)
	if err != nil {
		return fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("failed to decrypt: %w", err)
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("failed to deserialize decrypted value: %w", err)
	}
	return nil
}

// GenerateKey generates a secure 32-byte encryption key, base64-encoded for
// storage in a secret manager or environment variable. Call once during
// provisioning; the key must be persistent across restarts.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
