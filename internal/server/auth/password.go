package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor for new hashes. Stored hashes carry
// their own cost, so raising it later does not invalidate old passwords.
const DefaultBcryptCost = 12

// BcryptHasher hashes and verifies passwords. It is stateless apart from
// its cost and safe for concurrent use.
type BcryptHasher struct {
	cost  int
	dummy []byte
}

func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("credkeeper-timing-equalizer"), cost)
	if err != nil {
		return nil, fmt.Errorf("error preparing dummy hash: %w", err)
	}

	return &BcryptHasher{cost: cost, dummy: dummy}, nil
}

func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt hash. Errors (for example a password over
// 72 bytes) must fail the calling operation.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. A malformed hash is a
// mismatch, not an error.
func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyVerify burns the same CPU as a real Verify. Callers use it when the
// account does not exist so response time does not reveal that.
func (h *BcryptHasher) DummyVerify(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
