package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-auth/internal/domain"
	"github.com/spec-kit/token-auth/internal/events"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller for the current request.
type Principal struct {
	Identity  domain.Identity
	Roles     domain.RoleSet
	TokenID   string
	ExpiresAt time.Time
}

// AuthMiddleware validates bearer tokens and enforces role requirements.
type AuthMiddleware struct {
	validator  *TokenValidator
	dispatcher events.Dispatcher
	now        func() time.Time
}

// NewAuthMiddleware constructs middleware. dispatcher may be nil.
func NewAuthMiddleware(validator *TokenValidator, dispatcher events.Dispatcher) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, dispatcher: dispatcher, now: time.Now}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		m.publish(c, events.EventTokenRejected, "", err)
		return err
	}

	claims, err := m.validator.Validate(token, m.now())
	if err != nil {
		m.publish(c, events.EventTokenRejected, "", err)
		return err
	}

	c.Locals(principalKey, &Principal{
		Identity:  claims.Identity(),
		Roles:     claims.Roles,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	})
	return c.Next()
}

// RequireRoles admits callers holding any of the given roles. With no roles
// it only requires a valid token.
func (m *AuthMiddleware) RequireRoles(roles ...domain.RoleName) fiber.Handler {
	required := domain.NewRoleSet(roles...)

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return domain.ErrMissingCredential
		}
		if Authorize(required, principal.Roles) == Deny {
			err := fmt.Errorf("%w: need one of %v", domain.ErrInsufficientRole, required.Names())
			m.publish(c, events.EventAccessDenied, principal.Identity.ID, err)
			return err
		}
		return c.Next()
	}
}

func (m *AuthMiddleware) publish(c *fiber.Ctx, eventType events.EventType, subjectID string, cause error) {
	if m.dispatcher == nil {
		return
	}
	_ = m.dispatcher.Publish(c.UserContext(), events.NewEvent(eventType, subjectID, events.AuthFailurePayload{
		Reason: domain.AuthFailureReason(cause),
		Path:   c.Path(),
		IP:     c.IP(),
	}))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", domain.ErrMissingCredential)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: invalid authorization header", domain.ErrMissingCredential)
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", fmt.Errorf("%w: empty bearer token", domain.ErrMissingCredential)
	}
	return token, nil
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
