package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-auth/internal/api/dto"
	"github.com/spec-kit/token-auth/internal/auth"
	"github.com/spec-kit/token-auth/internal/domain"
	"github.com/spec-kit/token-auth/internal/observability"
	"github.com/spec-kit/token-auth/internal/service"
	apperrors "github.com/spec-kit/token-auth/pkg/util/errorutil"
)

// AuthHandler exposes login, registration and caller introspection.
type AuthHandler struct {
	auth    *service.AuthService
	metrics *observability.Metrics
	now     func() time.Time
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{auth: authService, metrics: metrics, now: time.Now}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := dto.Validate(&req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password, h.now())
	if err != nil {
		return err
	}
	h.metrics.RecordAuthOutcome("ok")

	return c.JSON(dto.AuthResponse{Token: result.Token, ExpiresAt: result.Claims.ExpiresAt})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := dto.Validate(&req); err != nil {
		return err
	}

	result, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password, h.now())
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.AuthResponse{Token: result.Token, ExpiresAt: result.Claims.ExpiresAt})
}

// Logout handles POST /auth/logout. Tokens are not revoked.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.ErrMissingCredential
	}
	if err := h.auth.Logout(c.UserContext(), principal); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.ErrMissingCredential
	}
	return c.JSON(dto.MeResponse{
		ID:        principal.Identity.ID,
		Name:      principal.Identity.DisplayName,
		Roles:     principal.Roles.Names(),
		TokenID:   principal.TokenID,
		ExpiresAt: principal.ExpiresAt,
	})
}

// Roles handles GET /auth/roles.
func (h *AuthHandler) Roles(c *fiber.Ctx) error {
	names := h.auth.Catalog().Names()
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = string(name)
	}
	return c.JSON(dto.RolesResponse{Roles: out})
}
