package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/token-auth/internal/api/http"
	"github.com/spec-kit/token-auth/internal/api/http/handlers"
	"github.com/spec-kit/token-auth/internal/auth"
	"github.com/spec-kit/token-auth/internal/config"
	"github.com/spec-kit/token-auth/internal/credential"
	"github.com/spec-kit/token-auth/internal/domain"
	"github.com/spec-kit/token-auth/internal/events"
	"github.com/spec-kit/token-auth/internal/observability"
	"github.com/spec-kit/token-auth/internal/persistence"
	"github.com/spec-kit/token-auth/internal/ratelimit"
	"github.com/spec-kit/token-auth/internal/repository"
	"github.com/spec-kit/token-auth/internal/service"
	"github.com/spec-kit/token-auth/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, err := domain.NewRoleCatalog(cfg.Auth.Roles)
	if err != nil {
		logger.Fatal("invalid role catalog", zap.Error(err))
	}
	settings := auth.SettingsFromConfig(cfg.Auth, catalog)
	issuer, err := auth.NewTokenIssuer(settings)
	if err != nil {
		logger.Fatal("failed to build token issuer", zap.Error(err))
	}
	validator, err := auth.NewTokenValidator(settings)
	if err != nil {
		logger.Fatal("failed to build token validator", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		userRepo repository.UserRepository
		roleRepo repository.RoleRepository
	)
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.PoolHandle())
		roleRepo = repository.NewRoleRepository(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory credential and role stores")
		userRepo = repository.NewMemoryUserRepository()
		roleRepo = repository.NewMemoryRoleRepository()
	}

	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	if redis.Enabled() {
		redisLimiter, err := ratelimit.NewRedisLimiter(redis.Client, time.Now)
		if err != nil {
			logger.Fatal("failed to build redis limiter", zap.Error(err))
		}
		limiter = ratelimit.WithCircuitBreaker(redisLimiter, ratelimit.BreakerSettings{Logger: logger})
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	metrics := observability.NewMetrics()
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Credentials: credential.NewStore(userRepo, cfg.Auth.BcryptCost),
		RoleRepo:    roleRepo,
		Catalog:     catalog,
		Issuer:      issuer,
		Limiter:     limiter,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	if cfg.Auth.SeedAdminEmail != "" {
		user, created, err := authService.EnsureUser(ctx, "Administrator", cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword, domain.RoleAdmin)
		if err != nil {
			logger.Fatal("failed to seed admin", zap.Error(err))
		}
		logger.Info("admin account ensured", zap.String("user_id", user.ID), zap.Bool("created", created))
	}

	authMiddleware := auth.NewAuthMiddleware(validator, dispatcher)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
