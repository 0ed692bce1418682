// Package config provides operator secret configuration and hashing functionality.
package config

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// SecretConfig holds configuration for operator secret hashing and
// verification. Tokens for the admin API are issued only to callers that
// present the operator secret.
type SecretConfig struct {
	BcryptCost int
	// SecretHash is the bcrypt hash of the operator secret. When only the
	// plain secret is configured it is hashed once at startup.
	SecretHash string
}

// NewSecretConfig creates a new secret configuration from environment
// variables. It reads OPERATOR_SECRET_HASH (preferred) or OPERATOR_SECRET,
// and BCRYPT_COST (default: 12).
func NewSecretConfig() (*SecretConfig, error) {
	costStr := os.Getenv("BCRYPT_COST")
	if costStr == "" {
		costStr = "12" // default
	}

	cost, err := strconv.Atoi(costStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %v", err)
	}

	config := &SecretConfig{
		BcryptCost: cost,
		SecretHash: os.Getenv("OPERATOR_SECRET_HASH"),
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	if config.SecretHash == "" {
		plain := os.Getenv("OPERATOR_SECRET")
		if plain == "" {
			return nil, fmt.Errorf("OPERATOR_SECRET_HASH or OPERATOR_SECRET is required but not set")
		}
		hash, err := config.HashSecret(plain)
		if err != nil {
			return nil, err
		}
		config.SecretHash = hash
	}

	return config, nil
}

// normalize validates the configuration.
func (c *SecretConfig) normalize() error {
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.BcryptCost)
	}
	return nil
}

// HashSecret hashes a secret using bcrypt.
func (c *SecretConfig) HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}

	return string(hash), nil
}

// VerifySecret verifies a presented secret against the stored hash.
func (c *SecretConfig) VerifySecret(secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret))
	return err == nil
}
