package credential

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/token-auth/internal/domain"
	"github.com/spec-kit/token-auth/internal/repository"
)

type failingUsers struct {
	repository.UserRepository
	err error
}

func (f failingUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, f.err
}

func TestStoreVerify(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	store := NewStore(users, bcrypt.MinCost)

	created, err := store.Create(ctx, "Real User", "  Real@X.com ", "correct-horse")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Email != "real@x.com" {
		t.Fatalf("expected normalised email, got %q", created.Email)
	}

	identity, err := store.Verify(ctx, "REAL@x.com", "correct-horse")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.ID != created.ID || identity.DisplayName != "Real User" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	_, wrongPassword := store.Verify(ctx, "real@x.com", "wrongpw")
	_, unknownEmail := store.Verify(ctx, "nouser@x.com", "x")
	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) || !errors.Is(unknownEmail, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v / %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("failure messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestStoreVerifySuspended(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	hash, err := HashPassword("pw", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := users.Create(ctx, &domain.User{Name: "S", Email: "s@x.com", PasswordHash: hash, Status: domain.UserStatusSuspended}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	store := NewStore(users, bcrypt.MinCost)
	if _, err := store.Verify(ctx, "s@x.com", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for suspended account, got %v", err)
	}
}

func TestStoreVerifyUpstreamFailure(t *testing.T) {
	store := NewStore(failingUsers{err: context.DeadlineExceeded}, bcrypt.MinCost)

	_, err := store.Verify(context.Background(), "a@x.com", "pw")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestHashPasswordClampsCost(t *testing.T) {
	hash, err := HashPassword("pw", 99)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d %v", cost, err)
	}
	if err := ComparePassword(hash, "pw"); err != nil {
		t.Fatalf("ComparePassword: %v", err)
	}
}
