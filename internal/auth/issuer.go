package auth

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/token-auth/internal/domain"
)

// IssuedToken is a signed compact token together with the claims it carries.
type IssuedToken struct {
	Token  string
	Claims *domain.Claims
}

// TokenIssuer signs access tokens for identities that were already verified.
type TokenIssuer struct {
	settings TokenSettings
	newID    func() (string, error)
}

// NewTokenIssuer builds an issuer. An empty signing key is a configuration error.
func NewTokenIssuer(settings TokenSettings) (*TokenIssuer, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &TokenIssuer{settings: settings, newID: randomTokenID}, nil
}

// TTL returns the lifetime applied to new tokens.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.settings.TTL
}

// Issue builds and signs a token for identity carrying a snapshot of roles.
func (ti *TokenIssuer) Issue(identity domain.Identity, roles domain.RoleSet, now time.Time) (*IssuedToken, error) {
	if err := ti.settings.Catalog.Check(roles); err != nil {
		return nil, err
	}

	tokenID, err := ti.newID()
	if err != nil {
		return nil, fmt.Errorf("generate token id: %w", err)
	}

	// Timestamps travel as whole seconds; keep the returned claims identical
	// to what a validator will decode.
	issuedAt := now.Truncate(jwt.TimePrecision)
	claims, err := domain.NewClaims(identity, roles, tokenID, ti.settings.Issuer, ti.settings.Audience, issuedAt, issuedAt.Add(ti.settings.TTL))
	if err != nil {
		return nil, err
	}

	wire := &tokenClaims{
		Name:  claims.DisplayName,
		Roles: claims.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID,
			Subject:   claims.SubjectID,
			Issuer:    claims.Issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}
	if claims.Audience != "" {
		wire.Audience = jwt.ClaimStrings{claims.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	signed, err := token.SignedString(ti.settings.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{Token: signed, Claims: claims}, nil
}

func randomTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
