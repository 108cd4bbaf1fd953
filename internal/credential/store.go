package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/token-auth/internal/domain"
	"github.com/spec-kit/token-auth/internal/repository"
)

// Store verifies email/password pairs against stored credential records.
type Store struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewStore builds a credential store over the user repository.
func NewStore(users repository.UserRepository, bcryptCost int) *Store {
	return &Store{users: users, bcryptCost: bcryptCost}
}

// NormalizeEmail trims and lower-cases an address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Verify returns the identity for a matching pair. Unknown email, wrong
// password and suspended accounts all yield domain.ErrInvalidCredentials.
// Repository failures are returned as domain.ErrUpstreamUnavailable.
func (s *Store) Verify(ctx context.Context, email, password string) (domain.Identity, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = ComparePassword(dummyPasswordHash(s.bcryptCost), password)
			return domain.Identity{}, domain.ErrInvalidCredentials
		}
		return domain.Identity{}, fmt.Errorf("%w: lookup credentials: %v", domain.ErrUpstreamUnavailable, err)
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return domain.Identity{}, domain.ErrInvalidCredentials
	}
	if user.Status != domain.UserStatusActive {
		return domain.Identity{}, domain.ErrInvalidCredentials
	}
	return user.Identity(), nil
}

// Create stores a new active credential record with a hashed password.
func (s *Store) Create(ctx context.Context, name, email, password string) (*domain.User, error) {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Remove deletes the record with id.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

// Lookup returns the record for email.
func (s *Store) Lookup(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}
