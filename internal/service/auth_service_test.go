package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/token-auth/internal/auth"
	"github.com/spec-kit/token-auth/internal/config"
	"github.com/spec-kit/token-auth/internal/credential"
	"github.com/spec-kit/token-auth/internal/domain"
	"github.com/spec-kit/token-auth/internal/events"
	"github.com/spec-kit/token-auth/internal/ratelimit"
	"github.com/spec-kit/token-auth/internal/repository"
	apperrors "github.com/spec-kit/token-auth/pkg/util/errorutil"
)

var t0 = time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) ofType(eventType events.EventType) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc       *AuthService
	users     *repository.MemoryUserRepository
	roles     *repository.MemoryRoleRepository
	validator *auth.TokenValidator
	log       *eventLog
}

type failingRoles struct {
	repository.RoleRepository
}

func (failingRoles) GetRoles(context.Context, string) ([]string, error) {
	return nil, errors.New("connection reset by peer")
}

type failingAssign struct {
	*repository.MemoryRoleRepository
}

func (failingAssign) Assign(context.Context, string, ...string) error {
	return errors.New("connection reset by peer")
}

func newFixture(t *testing.T, rateLimit int) *fixture {
	t.Helper()

	cfg := config.AuthConfig{
		JWTSecret:              "service-test-secret",
		Issuer:                 "token-auth",
		Audience:               "token-auth-clients",
		AccessTokenTTLMinutes:  60,
		BcryptCost:             bcrypt.MinCost,
		Roles:                  domain.DefaultRoleNames,
		DefaultRole:            string(domain.RoleUser),
		LoginRateLimit:         rateLimit,
		LoginRateWindowSeconds: 60,
	}
	catalog, err := domain.NewRoleCatalog(cfg.Roles)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	settings := auth.SettingsFromConfig(cfg, catalog)
	issuer, err := auth.NewTokenIssuer(settings)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	validator, err := auth.NewTokenValidator(settings)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	users := repository.NewMemoryUserRepository()
	roles := repository.NewMemoryRoleRepository()
	dispatcher := events.NewInMemoryDispatcher()
	log := &eventLog{}
	for _, et := range []events.EventType{events.EventLoginSucceeded, events.EventLoginFailed, events.EventUserRegistered} {
		dispatcher.Subscribe(et, log.record)
	}

	svc := NewAuthService(cfg, AuthDependencies{
		Credentials: credential.NewStore(users, cfg.BcryptCost),
		RoleRepo:    roles,
		Catalog:     catalog,
		Issuer:      issuer,
		Limiter:     ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{Now: func() time.Time { return t0 }}),
		Dispatcher:  dispatcher,
		Logger:      zaptest.NewLogger(t),
	})
	return &fixture{svc: svc, users: users, roles: roles, validator: validator, log: log}
}

func (f *fixture) seed(t *testing.T, email, password string, roles ...domain.RoleName) *domain.User {
	t.Helper()
	user, created, err := f.svc.EnsureUser(context.Background(), "Seeded", email, password, roles...)
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if !created {
		t.Fatalf("expected %s to be created", email)
	}
	return user
}

func TestLoginAdminScenario(t *testing.T) {
	f := newFixture(t, 10)
	f.seed(t, "admin@example.com", "Admin@123", domain.RoleAdmin)

	result, err := f.svc.Login(context.Background(), "admin@example.com", "Admin@123", t0)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := f.validator.Validate(result.Token, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !claims.Roles.Contains(domain.RoleAdmin) {
		t.Fatalf("expected ADMIN in %v", claims.Roles)
	}
	if got := auth.Authorize(domain.NewRoleSet(domain.RoleAdmin), claims.Roles); got != auth.Allow {
		t.Fatalf("Authorize = %v, want Allow", got)
	}

	if _, err := f.validator.Validate(result.Token, t0.Add(61*time.Minute)); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	if got := len(f.log.ofType(events.EventLoginSucceeded)); got != 1 {
		t.Fatalf("expected one success event, got %d", got)
	}
}

func TestLoginUniformFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.seed(t, "real@x.com", "correct-horse", domain.RoleUser)

	_, wrongPassword := f.svc.Login(context.Background(), "real@x.com", "wrongpw", t0)
	_, unknownEmail := f.svc.Login(context.Background(), "nouser@x.com", "x", t0)

	for _, err := range []error{wrongPassword, unknownEmail} {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("failures are distinguishable: %q vs %q", wrongPassword, unknownEmail)
	}

	failed := f.log.ofType(events.EventLoginFailed)
	if len(failed) != 2 {
		t.Fatalf("expected two failure events, got %d", len(failed))
	}
	for _, e := range failed {
		if p := e.Payload.(events.LoginFailedPayload); p.Reason != "invalid_credentials" {
			t.Fatalf("unexpected reason %q", p.Reason)
		}
	}
}

func TestLoginUpstreamFailures(t *testing.T) {
	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t, 10)
		f.seed(t, "real@x.com", "correct-horse", domain.RoleUser)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := f.svc.Login(ctx, "real@x.com", "correct-horse", t0)
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}
		if result != nil {
			t.Fatal("no token may be produced")
		}
	})

	t.Run("role store failure", func(t *testing.T) {
		f := newFixture(t, 10)
		f.seed(t, "real@x.com", "correct-horse", domain.RoleUser)
		f.svc.roles = failingRoles{}

		result, err := f.svc.Login(context.Background(), "real@x.com", "correct-horse", t0)
		if !errors.Is(err, domain.ErrUpstreamUnavailable) || result != nil {
			t.Fatalf("expected ErrUpstreamUnavailable and no token, got %v %v", result, err)
		}
		if domain.IsAuthenticationError(err) {
			t.Fatal("store failure must not look like an authentication failure")
		}
	})
}

func TestLoginUnknownStoredRole(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed(t, "real@x.com", "correct-horse")
	if err := f.roles.Assign(context.Background(), user.ID, "ROOT"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	result, err := f.svc.Login(context.Background(), "real@x.com", "correct-horse", t0)
	if !errors.Is(err, domain.ErrUnknownRole) || result != nil {
		t.Fatalf("expected ErrUnknownRole and no token, got %v %v", result, err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t, 3)
	f.seed(t, "real@x.com", "correct-horse", domain.RoleUser)

	for _, email := range []string{"real@x.com", "ghost@x.com"} {
		for i := 0; i < 3; i++ {
			if _, err := f.svc.Login(context.Background(), email, "bad", t0); !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("%s attempt %d: %v", email, i+1, err)
			}
		}
		if _, err := f.svc.Login(context.Background(), email, "correct-horse", t0); !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("%s: expected ErrRateLimited, got %v", email, err)
		}
	}
}

func TestLoginRolesAreSnapshotted(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed(t, "real@x.com", "correct-horse", domain.RoleUser, domain.RoleStaff)

	first, err := f.svc.Login(context.Background(), "real@x.com", "correct-horse", t0)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.roles.Revoke(context.Background(), user.ID, string(domain.RoleStaff)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	claims, err := f.validator.Validate(first.Token, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !claims.Roles.Contains(domain.RoleStaff) {
		t.Fatalf("issued token lost its role snapshot: %v", claims.Roles)
	}

	second, err := f.svc.Login(context.Background(), "real@x.com", "correct-horse", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if !second.Claims.Roles.Equal(domain.NewRoleSet(domain.RoleUser)) {
		t.Fatalf("expected current roles, got %v", second.Claims.Roles)
	}
	if first.Claims.TokenID == second.Claims.TokenID {
		t.Fatal("token ids must differ")
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	result, err := f.svc.Register(ctx, "Grace", "Grace@Example.com", "long-enough", t0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !result.Claims.Roles.Equal(domain.NewRoleSet(domain.RoleUser)) || result.Claims.DisplayName != "Grace" {
		t.Fatalf("unexpected claims %+v", result.Claims)
	}
	if got := len(f.log.ofType(events.EventUserRegistered)); got != 1 {
		t.Fatalf("expected one registration event, got %d", got)
	}

	if _, err := f.svc.Login(ctx, "grace@example.com", "long-enough", t0); err != nil {
		t.Fatalf("login after register: %v", err)
	}

	_, err = f.svc.Register(ctx, "Other", "grace@example.com", "long-enough", t0)
	if de := apperrors.ToDomainError(err); de.HTTPStatus != http.StatusConflict {
		t.Fatalf("duplicate email: got %v", err)
	}
}

func TestRegisterMultiBytePasswordOverLimit(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	// 40 runes, 80 bytes
	_, err := f.svc.Register(ctx, "N", "n@example.com", strings.Repeat("é", 40), t0)
	de := apperrors.ToDomainError(err)
	if de == nil || de.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected 400 validation error, got %v", err)
	}
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatal("an over-long password is not retryable")
	}
	if _, err := f.users.GetByEmail(ctx, "n@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no record may be stored, got %v", err)
	}
}

func TestRegisterRemovesUserWhenRoleAssignmentFails(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	f.svc.roles = failingAssign{f.roles}

	result, err := f.svc.Register(ctx, "Grace", "grace@example.com", "long-enough", t0)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) || result != nil {
		t.Fatalf("expected ErrUpstreamUnavailable and no token, got %v %v", result, err)
	}
	if _, err := f.users.GetByEmail(ctx, "grace@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("incomplete account must be removed, got %v", err)
	}

	f.svc.roles = f.roles
	retried, err := f.svc.Register(ctx, "Grace", "grace@example.com", "long-enough", t0)
	if err != nil {
		t.Fatalf("retry after upstream failure: %v", err)
	}
	if !retried.Claims.Roles.Equal(domain.NewRoleSet(domain.RoleUser)) {
		t.Fatalf("expected default role, got %v", retried.Claims.Roles)
	}
	if got := len(f.log.ofType(events.EventUserRegistered)); got != 1 {
		t.Fatalf("expected one registration event, got %d", got)
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	first := f.seed(t, "admin@example.com", "Admin@123", domain.RoleAdmin)
	again, created, err := f.svc.EnsureUser(ctx, "Seeded", "ADMIN@example.com", "ignored", domain.RoleAdmin)
	if err != nil || created {
		t.Fatalf("second EnsureUser: created=%v err=%v", created, err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected same user, got %s vs %s", again.ID, first.ID)
	}

	if _, _, err := f.svc.EnsureUser(ctx, "x", "x@example.com", "pw", "ROOT"); !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}
