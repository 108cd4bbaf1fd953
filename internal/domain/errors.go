package domain

import "errors"

// Authentication failures. Callers only ever see a single opaque 401 for
// these; the distinction is kept for logs and metrics.
var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrMissingCredential        = errors.New("missing credential")
	ErrMalformedToken           = errors.New("malformed token")
	ErrSignatureMismatch        = errors.New("signature mismatch")
	ErrIssuerOrAudienceMismatch = errors.New("issuer or audience mismatch")
	ErrTokenExpired             = errors.New("token expired")
)

var (
	// ErrInsufficientRole means the caller is known but lacks every required role.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrConfiguration is fatal at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrUpstreamUnavailable is returned when a store call fails or times out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUnknownRole is returned for role names outside the configured catalog.
	ErrUnknownRole = errors.New("unknown role")
	// ErrRateLimited is returned when login attempts exceed the configured window.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique record already exists.
	ErrConflict = errors.New("already exists")
)

// IsAuthenticationError reports whether err prevents establishing who the caller is.
func IsAuthenticationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrSignatureMismatch),
		errors.Is(err, ErrIssuerOrAudienceMismatch),
		errors.Is(err, ErrTokenExpired):
		return true
	}
	return false
}

// AuthFailureReason returns a short label for logging an authentication failure.
func AuthFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, ErrIssuerOrAudienceMismatch):
		return "issuer_or_audience_mismatch"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrInsufficientRole):
		return "insufficient_role"
	default:
		return "unknown"
	}
}
