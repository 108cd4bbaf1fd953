package domain

import (
	"fmt"
	"time"
)

// Identity is the principal returned by the credential store.
type Identity struct {
	ID          string
	DisplayName string
}

// Claims is the decoded content of an access token.
type Claims struct {
	SubjectID   string
	DisplayName string
	Roles       RoleSet
	TokenID     string
	Issuer      string
	Audience    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// NewClaims builds claims and enforces ExpiresAt > IssuedAt.
func NewClaims(identity Identity, roles RoleSet, tokenID, issuer, audience string, issuedAt, expiresAt time.Time) (*Claims, error) {
	if identity.ID == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrMalformedToken)
	}
	if tokenID == "" {
		return nil, fmt.Errorf("%w: empty token id", ErrMalformedToken)
	}
	if !expiresAt.After(issuedAt) {
		return nil, fmt.Errorf("%w: expiry %s not after issue time %s", ErrMalformedToken, expiresAt, issuedAt)
	}
	if roles == nil {
		roles = RoleSet{}
	}
	return &Claims{
		SubjectID:   identity.ID,
		DisplayName: identity.DisplayName,
		Roles:       roles,
		TokenID:     tokenID,
		Issuer:      issuer,
		Audience:    audience,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// Identity returns the subject of the claims.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.SubjectID, DisplayName: c.DisplayName}
}
