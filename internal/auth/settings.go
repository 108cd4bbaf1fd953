package auth

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/token-auth/internal/config"
	"github.com/spec-kit/token-auth/internal/domain"
)

// maxTokenLength bounds the bearer string accepted by the validator.
const maxTokenLength = 8192

// TokenSettings is the immutable key material and policy shared by the
// issuer and the validator.
type TokenSettings struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Catalog  *domain.RoleCatalog
}

// SettingsFromConfig builds token settings from the loaded configuration.
func SettingsFromConfig(cfg config.AuthConfig, catalog *domain.RoleCatalog) TokenSettings {
	return TokenSettings{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.AccessTokenTTL(),
		Catalog:  catalog,
	}
}

func (s TokenSettings) validate() error {
	if len(s.Secret) == 0 {
		return fmt.Errorf("%w: signing key is empty", domain.ErrConfiguration)
	}
	if s.TTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", domain.ErrConfiguration)
	}
	if s.Catalog == nil {
		return fmt.Errorf("%w: role catalog is required", domain.ErrConfiguration)
	}
	return nil
}

// tokenClaims is the wire form of the payload segment.
type tokenClaims struct {
	Name  string         `json:"name,omitempty"`
	Roles domain.RoleSet `json:"role,omitempty"`
	jwt.RegisteredClaims
}
