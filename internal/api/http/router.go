package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-auth/internal/api/http/handlers"
	"github.com/spec-kit/token-auth/internal/auth"
	"github.com/spec-kit/token-auth/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	mw := cfg.AuthMiddleware

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	// per-reason auth failure counters are not for anonymous callers
	app.Get("/health/metrics", mw.Handle, mw.RequireRoles(domain.RoleAdmin), cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)

	authGroup.Post("/logout", mw.Handle, mw.RequireRoles(), cfg.Auth.Logout)
	authGroup.Get("/me", mw.Handle, mw.RequireRoles(), cfg.Auth.Me)
	authGroup.Get("/roles", mw.Handle, mw.RequireRoles(domain.RoleAdmin), cfg.Auth.Roles)
}
