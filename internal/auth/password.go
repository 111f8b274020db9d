package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes and checks secrets. Operators use it for login
// passwords and the channel synchronizer for webhook shared secrets.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// BcryptPasswordHasher is a PasswordHasher implementation using bcrypt.
type BcryptPasswordHasher struct {
	cost int
}

func NewBcryptPasswordHasher() *BcryptPasswordHasher {
	return &BcryptPasswordHasher{
		cost: bcrypt.DefaultCost,
	}
}

// NewBcryptPasswordHasherWithCost clamps cost into bcrypt's accepted range.
// A non-positive cost selects the default.
func NewBcryptPasswordHasherWithCost(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		return NewBcryptPasswordHasher()
	}
	return &BcryptPasswordHasher{
		cost: min(max(cost, bcrypt.MinCost), bcrypt.MaxCost),
	}
}

// Cost returns the bcrypt work factor in use.
func (h *BcryptPasswordHasher) Cost() int {
	return h.cost
}

func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Compare returns nil when plain matches hash.
func (h *BcryptPasswordHasher) Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
