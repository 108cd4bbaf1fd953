package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/token-auth/internal/domain"
)

var (
	_ UserRepository = (*MemoryUserRepository)(nil)
	_ RoleRepository = (*MemoryRoleRepository)(nil)
)

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := &domain.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "h", Status: domain.UserStatusActive}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == "" || user.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", user)
	}

	if err := repo.Create(ctx, &domain.User{Email: "ada@example.com"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	if err != nil || got.ID != user.ID {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}
	got.Name = "mutated"
	again, _ := repo.GetByID(ctx, user.ID)
	if again.Name != "Ada" {
		t.Fatal("repository must hand out copies")
	}

	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "ada@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
	}
	if err := repo.Create(ctx, &domain.User{Email: "ada@example.com"}); err != nil {
		t.Fatalf("email must be reusable after delete: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := repo.GetByEmail(cancelled, "ada@example.com"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryRoleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRoleRepository()

	roles, err := repo.GetRoles(ctx, "u-1")
	if err != nil || len(roles) != 0 {
		t.Fatalf("expected no roles, got %v %v", roles, err)
	}

	if err := repo.Assign(ctx, "u-1", "USER", "ADMIN", "USER"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	roles, _ = repo.GetRoles(ctx, "u-1")
	if len(roles) != 2 || roles[0] != "ADMIN" || roles[1] != "USER" {
		t.Fatalf("unexpected roles %v", roles)
	}

	if err := repo.Revoke(ctx, "u-1", "ADMIN"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	roles, _ = repo.GetRoles(ctx, "u-1")
	if len(roles) != 1 || roles[0] != "USER" {
		t.Fatalf("unexpected roles after revoke %v", roles)
	}
}
