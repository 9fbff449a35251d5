package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	TokenKeyLength = 32 // 256 bits
)

// dummyPassword is hashed once per Hasher and compared against when a login
// names an unknown account, so both paths pay one bcrypt comparison.
const dummyPassword = "kafedra-timing-equalizer"

// Hasher hashes and verifies passwords at a fixed bcrypt cost
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewHasher creates a Hasher. Costs outside bcrypt's range fall back to BcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = BcryptCost
	}
	return &Hasher{cost: cost}
}

// ErrPasswordTooLong is returned for passwords bcrypt would reject
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hash returns the bcrypt hash of password
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Compare verifies password against a stored hash
func (h *Hasher) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// CompareDummy burns one comparison against a throwaway hash. It always fails.
func (h *Hasher) CompareDummy(password string) {
	h.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), h.cost)
		if err != nil {
			panic(fmt.Sprintf("hash dummy password: %v", err))
		}
		h.dummyHash = hash
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// BurnHash spends one bcrypt hash on throwaway input. Paths that must not
// finish faster than a real Hash call use it.
func (h *Hasher) BurnHash() {
	if _, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), h.cost); err != nil {
		panic(fmt.Sprintf("hash dummy password: %v", err))
	}
}

var defaultHasher = NewHasher(BcryptCost)

func HashPassword(password string) (string, error) {
	return defaultHasher.Hash(password)
}

func ComparePassword(hashedPassword, password string) error {
	return defaultHasher.Compare(hashedPassword, password)
}

// GenerateToken returns TokenKeyLength random bytes as lowercase hex. Tokens
// travel in query strings, so the alphabet stays clear of the firewall's
// SQL and traversal signatures.
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenKeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken returns the hex SHA-256 of a token for storage
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
