// Package auth holds the room password gate and bearer-token identity.
package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordGate hashes and verifies room passwords with bcrypt.
type PasswordGate struct {
	cost int
}

// NewPasswordGate falls back to bcrypt.DefaultCost when cost is out of range.
func NewPasswordGate(cost int) *PasswordGate {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordGate{cost: cost}
}

func (g *PasswordGate) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), g.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (g *PasswordGate) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
