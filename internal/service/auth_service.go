package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/token-auth/internal/auth"
	"github.com/spec-kit/token-auth/internal/config"
	"github.com/spec-kit/token-auth/internal/credential"
	"github.com/spec-kit/token-auth/internal/domain"
	"github.com/spec-kit/token-auth/internal/events"
	"github.com/spec-kit/token-auth/internal/repository"
	apperrors "github.com/spec-kit/token-auth/pkg/util/errorutil"
)

// LoginResult is returned by a successful login or registration.
type LoginResult struct {
	Token  string
	Claims *domain.Claims
}

// AuthService coordinates credential verification, role lookup and token issuance.
type AuthService struct {
	credentials *credential.Store
	roles       repository.RoleRepository
	catalog     *domain.RoleCatalog
	issuer      *auth.TokenIssuer
	limiter     domain.RateLimiter
	dispatcher  events.Dispatcher
	logger      *zap.Logger

	defaultRole domain.RoleName
	rateLimit   int
	rateWindow  time.Duration
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Credentials *credential.Store
	RoleRepo    repository.RoleRepository
	Catalog     *domain.RoleCatalog
	Issuer      *auth.TokenIssuer
	Limiter     domain.RateLimiter
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAuthService builds the service. cfg must already be validated.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		credentials: deps.Credentials,
		roles:       deps.RoleRepo,
		catalog:     deps.Catalog,
		issuer:      deps.Issuer,
		limiter:     deps.Limiter,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		defaultRole: domain.RoleName(strings.TrimSpace(cfg.DefaultRole)),
		rateLimit:   cfg.LoginRateLimit,
		rateWindow:  cfg.LoginRateWindow(),
	}
}

// Login verifies the credential pair and issues a token carrying the roles
// assigned at this moment. Unknown email and wrong password fail with the
// same error; store failures and cancellation never produce a token.
func (s *AuthService) Login(ctx context.Context, email, password string, now time.Time) (*LoginResult, error) {
	normalized := credential.NormalizeEmail(email)

	if err := s.checkRateLimit(ctx, normalized); err != nil {
		s.loginFailed(ctx, normalized, err)
		return nil, err
	}

	identity, err := s.credentials.Verify(ctx, normalized, password)
	if err != nil {
		err = upstreamOr(ctx, err)
		s.loginFailed(ctx, normalized, err)
		return nil, err
	}

	result, err := s.issueFor(ctx, identity, now)
	if err != nil {
		s.loginFailed(ctx, normalized, err)
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, identity.ID, events.LoginSucceededPayload{
		TokenID:   result.Claims.TokenID,
		Roles:     result.Claims.Roles.Names(),
		ExpiresAt: result.Claims.ExpiresAt,
	}))
	return result, nil
}

// Register creates an active account with the default role and logs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string, now time.Time) (*LoginResult, error) {
	user, err := s.credentials.Create(ctx, name, email, password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			return nil, apperrors.NewConflict("email already registered", nil)
		case errors.Is(err, bcrypt.ErrPasswordTooLong):
			return nil, apperrors.NewValidationError("invalid request", map[string]any{"password": "bytemax=72"})
		}
		return nil, upstreamOr(ctx, err)
	}
	if err := s.roles.Assign(ctx, user.ID, string(s.defaultRole)); err != nil {
		s.discardUser(ctx, user.ID)
		return nil, upstreamOr(ctx, err)
	}

	result, err := s.issueFor(ctx, user.Identity(), now)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Email: user.Email,
		Roles: result.Claims.Roles.Names(),
	}))
	return result, nil
}

// EnsureUser creates the account when it does not exist yet and assigns roles.
// It is safe to call on every start.
func (s *AuthService) EnsureUser(ctx context.Context, name, email, password string, roles ...domain.RoleName) (*domain.User, bool, error) {
	for _, role := range roles {
		if _, err := s.catalog.Parse(string(role)); err != nil {
			return nil, false, err
		}
	}

	created := false
	user, err := s.credentials.Lookup(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		user, err = s.credentials.Create(ctx, name, email, password)
		if err != nil {
			return nil, false, fmt.Errorf("create user %s: %w", credential.NormalizeEmail(email), err)
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}

	if len(roles) > 0 {
		names := domain.NewRoleSet(roles...).Names()
		if err := s.roles.Assign(ctx, user.ID, names...); err != nil {
			return nil, false, fmt.Errorf("assign roles: %w", err)
		}
	}
	return user, created, nil
}

// Logout is a no-op: tokens stay valid until they expire.
func (s *AuthService) Logout(_ context.Context, principal *auth.Principal) error {
	if principal != nil {
		s.logger.Debug("logout", zap.String("subject_id", principal.Identity.ID), zap.String("token_id", principal.TokenID))
	}
	return nil
}

// Catalog returns the configured role catalog.
func (s *AuthService) Catalog() *domain.RoleCatalog {
	return s.catalog
}

func (s *AuthService) issueFor(ctx context.Context, identity domain.Identity, now time.Time) (*LoginResult, error) {
	names, err := s.roles.GetRoles(ctx, identity.ID)
	if err != nil {
		return nil, upstreamOr(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	roles, err := s.catalog.ParseSet(names)
	if err != nil {
		return nil, fmt.Errorf("resolve roles for %s: %w", identity.ID, err)
	}

	issued, err := s.issuer.Issue(identity, roles, now)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: issued.Token, Claims: issued.Claims}, nil
}

// discardUser removes an account whose registration did not complete so the
// email can be registered again.
func (s *AuthService) discardUser(ctx context.Context, userID string) {
	if err := s.credentials.Remove(context.WithoutCancel(ctx), userID); err != nil {
		s.logger.Error("remove incomplete registration", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *AuthService) checkRateLimit(ctx context.Context, key string) error {
	if s.limiter == nil || s.rateLimit <= 0 {
		return nil
	}
	decision, err := s.limiter.Allow(ctx, key, s.rateLimit, s.rateWindow)
	if err != nil {
		s.logger.Warn("login rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !decision.Allowed {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string, cause error) {
	reason := domain.AuthFailureReason(cause)
	switch {
	case errors.Is(cause, domain.ErrRateLimited):
		reason = "rate_limited"
	case errors.Is(cause, domain.ErrUpstreamUnavailable):
		reason = "upstream_unavailable"
	}
	s.publish(ctx, events.NewEvent(events.EventLoginFailed, "", events.LoginFailedPayload{
		Email:  email,
		Reason: reason,
	}))
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	// Audit delivery must not depend on the request context.
	if err := s.dispatcher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// upstreamOr keeps authentication outcomes and turns everything else,
// including cancellation, into ErrUpstreamUnavailable.
func upstreamOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, ctxErr)
	}
	if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}
