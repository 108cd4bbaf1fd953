package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/token-auth/internal/domain"
)

// TokenValidator verifies bearer tokens. It holds no mutable state and is
// safe for concurrent use.
type TokenValidator struct {
	settings TokenSettings
	segments *jwt.Parser
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// NewTokenValidator builds a validator from the shared settings.
func NewTokenValidator(settings TokenSettings) (*TokenValidator, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &TokenValidator{settings: settings, segments: jwt.NewParser()}, nil
}

// Validate checks structure, signature, issuer, audience and expiry, in that
// order, and returns the decoded claims.
func (v *TokenValidator) Validate(tokenString string, now time.Time) (*domain.Claims, error) {
	if tokenString == "" || len(tokenString) > maxTokenLength {
		return nil, fmt.Errorf("%w: token length %d", domain.ErrMalformedToken, len(tokenString))
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", domain.ErrMalformedToken, len(parts))
	}

	if err := v.checkHeader(parts[0]); err != nil {
		return nil, err
	}

	signature, err := v.segments.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature encoding: %v", domain.ErrMalformedToken, err)
	}

	// The MAC covers the raw header and payload bytes and is checked before
	// the payload is decoded.
	signingInput := parts[0] + "." + parts[1]
	if err := jwt.SigningMethodHS256.Verify(signingInput, signature, v.settings.Secret); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureMismatch, err)
	}

	var wire tokenClaims
	if _, err := v.parser(now).ParseWithClaims(tokenString, &wire, v.keyFunc); err != nil {
		return nil, classifyParseError(err)
	}

	return v.toClaims(&wire)
}

func (v *TokenValidator) checkHeader(segment string) error {
	raw, err := v.segments.DecodeSegment(segment)
	if err != nil {
		return fmt.Errorf("%w: header encoding: %v", domain.ErrMalformedToken, err)
	}
	var header tokenHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return fmt.Errorf("%w: header json: %v", domain.ErrMalformedToken, err)
	}
	if header.Alg != jwt.SigningMethodHS256.Alg() {
		return fmt.Errorf("%w: unexpected algorithm %q", domain.ErrMalformedToken, header.Alg)
	}
	if header.Typ != "" && header.Typ != "JWT" {
		return fmt.Errorf("%w: unexpected type %q", domain.ErrMalformedToken, header.Typ)
	}
	return nil
}

func (v *TokenValidator) parser(now time.Time) *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// golang-jwt rejects at now == exp; a token is still valid at its
		// expiry instant and expires strictly after it.
		jwt.WithTimeFunc(func() time.Time { return now.Add(-time.Nanosecond) }),
		jwt.WithExpirationRequired(),
	}
	if v.settings.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.settings.Issuer))
	}
	if v.settings.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.settings.Audience))
	}
	return jwt.NewParser(opts...)
}

func (v *TokenValidator) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return v.settings.Secret, nil
}

func (v *TokenValidator) toClaims(wire *tokenClaims) (*domain.Claims, error) {
	if err := v.settings.Catalog.Check(wire.Roles); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	if wire.IssuedAt == nil || wire.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing iat or exp", domain.ErrMalformedToken)
	}

	audience := ""
	if len(wire.Audience) > 0 {
		audience = wire.Audience[0]
		for _, aud := range wire.Audience {
			if aud == v.settings.Audience {
				audience = aud
				break
			}
		}
	}

	identity := domain.Identity{ID: wire.Subject, DisplayName: wire.Name}
	return domain.NewClaims(identity, wire.Roles, wire.ID, wire.Issuer, audience, wire.IssuedAt.Time, wire.ExpiresAt.Time)
}

// classifyParseError maps library errors onto the authentication taxonomy.
// Issuer and audience are checked ahead of expiry.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", domain.ErrIssuerOrAudienceMismatch, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", domain.ErrSignatureMismatch, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
}
