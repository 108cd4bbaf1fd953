package credential

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// dummyPasswordHash returns a hash compared against when the email is
// unknown, so both failure paths pay for one bcrypt comparison.
func dummyPasswordHash(cost int) string {
	dummyOnce.Do(func() {
		dummyHash, _ = HashPassword("credential-store-placeholder", cost)
	})
	return dummyHash
}
