// Package vault provides the credential-vault capability: sealing and
// opening opaque secrets such as publishing passwords. Secrets are encrypted
// with NaCl secretbox under a single operator-provided key.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jonathan/article-engine/internal/types"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Vault seals and opens secrets under a fixed symmetric key.
type Vault struct {
	key [keySize]byte
}

// New creates a Vault from a base64-encoded 32-byte key.
func New(encodedKey string) (*Vault, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, &types.ErrCredential{Message: "vault key is not valid base64", Cause: err}
	}
	if len(raw) != keySize {
		return nil, &types.ErrCredential{Message: fmt.Sprintf("vault key must be %d bytes, got %d", keySize, len(raw))}
	}

	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

// NewFromEnv creates a Vault from the VAULT_KEY environment variable.
func NewFromEnv() (*Vault, error) {
	encoded := os.Getenv("VAULT_KEY")
	if encoded == "" {
		return nil, &types.ErrCredential{Message: "VAULT_KEY is required but not set"}
	}
	return New(encoded)
}

// GenerateKey returns a fresh base64-encoded vault key. Used by operators
// when bootstrapping a deployment.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate vault key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts a secret and returns it base64-encoded with the nonce
// prepended.
func (v *Vault) Seal(secret string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(secret), &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed secret.
func (v *Vault) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", &types.ErrCredential{Message: "sealed secret is not valid base64", Cause: err}
	}
	if len(raw) < nonceSize {
		return "", &types.ErrCredential{Message: "sealed secret is too short"}
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	opened, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", &types.ErrCredential{Message: "failed to decrypt secret: wrong key or corrupted data"}
	}
	return string(opened), nil
}
