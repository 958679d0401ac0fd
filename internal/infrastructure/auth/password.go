package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
)

// BcryptHasher implements port.PasswordHasher
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher; cost 0 means bcrypt.DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var _ port.PasswordHasher = (*BcryptHasher)(nil)
