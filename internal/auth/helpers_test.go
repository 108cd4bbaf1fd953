package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/token-auth/internal/domain"
)

const testSecret = "test-secret-key-0123456789abcdef"

var t0 = time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)

func testSettings(t *testing.T) TokenSettings {
	t.Helper()
	catalog, err := domain.NewRoleCatalog(domain.DefaultRoleNames)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return TokenSettings{
		Secret:   []byte(testSecret),
		Issuer:   "token-auth",
		Audience: "token-auth-clients",
		TTL:      60 * time.Minute,
		Catalog:  catalog,
	}
}

func newPair(t *testing.T, settings TokenSettings) (*TokenIssuer, *TokenValidator) {
	t.Helper()
	issuer, err := NewTokenIssuer(settings)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	validator, err := NewTokenValidator(settings)
	if err != nil {
		t.Fatalf("NewTokenValidator: %v", err)
	}
	return issuer, validator
}
