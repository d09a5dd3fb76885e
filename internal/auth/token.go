package auth

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken means the presented token does not match the configured hash
	ErrInvalidToken = errors.New("invalid authentication token")
	// ErrMalformedHash means the configured hash is not a bcrypt hash
	ErrMalformedHash = errors.New("malformed token hash")
)

// bcryptCost is used when hashing new API tokens
const bcryptCost = 12

// GenerateToken returns a new random API token and its bcrypt hash. Only the
// hash belongs in configuration.
func GenerateToken() (plaintext, hash string, err error) {
	// Generate 20 random bytes
	randomBytes := make([]byte, 20)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}

	// Encode as base32 (32 characters)
	plaintext = base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)

	hash, err = HashToken(plaintext)
	if err != nil {
		return "", "", err
	}
	return plaintext, hash, nil
}

// HashToken hashes a plaintext token with bcrypt
func HashToken(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// Verifier checks bearer tokens against one configured bcrypt hash
type Verifier struct {
	hash []byte
}

// NewVerifier creates a verifier. An empty hash disables verification.
func NewVerifier(hash string) (*Verifier, error) {
	if hash == "" {
		return &Verifier{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return &Verifier{hash: []byte(hash)}, nil
}

// Enabled reports whether tokens are checked at all
func (v *Verifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify returns nil when plaintext matches the configured hash
func (v *Verifier) Verify(plaintext string) error {
	if !v.Enabled() {
		return nil
	}

	err := bcrypt.CompareHashAndPassword(v.hash, []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidToken
	default:
		return err
	}
}
