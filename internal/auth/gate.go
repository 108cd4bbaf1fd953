package auth

import "github.com/spec-kit/token-auth/internal/domain"

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Authorize applies any-of semantics: the caller needs at least one of the
// required roles. An empty requirement admits any authenticated caller.
func Authorize(required, granted domain.RoleSet) Decision {
	if required.Len() == 0 {
		return Allow
	}
	if required.Intersects(granted) {
		return Allow
	}
	return Deny
}
