package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/token-auth/internal/domain"
)

// Config aggregates runtime configuration for the service. It is loaded once
// at startup and passed by value afterwards.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AuthConfig defines token and credential parameters.
type AuthConfig struct {
	JWTSecret              string
	Issuer                 string
	Audience               string
	AccessTokenTTLMinutes  int
	BcryptCost             int
	Roles                  []string
	DefaultRole            string
	SeedAdminEmail         string
	SeedAdminPassword      string
	LoginRateLimit         int
	LoginRateWindowSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ttl, err := strconv.Atoi(getEnv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_ACCESS_TOKEN_TTL_MINUTES: %v", domain.ErrConfiguration, err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "token-auth"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 28),
		},
		Auth: AuthConfig{
			JWTSecret:              os.Getenv("AUTH_JWT_SECRET"),
			Issuer:                 getEnv("AUTH_ISSUER", "token-auth"),
			Audience:               getEnv("AUTH_AUDIENCE", "token-auth-clients"),
			AccessTokenTTLMinutes:  ttl,
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			Roles:                  getEnvAsList("AUTH_ROLES", domain.DefaultRoleNames),
			DefaultRole:            getEnv("AUTH_DEFAULT_ROLE", string(domain.RoleUser)),
			SeedAdminEmail:         os.Getenv("AUTH_SEED_ADMIN_EMAIL"),
			SeedAdminPassword:      os.Getenv("AUTH_SEED_ADMIN_PASSWORD"),
			LoginRateLimit:         getEnvAsInt("AUTH_LOGIN_RATE_LIMIT", 10),
			LoginRateWindowSeconds: getEnvAsInt("AUTH_LOGIN_RATE_WINDOW_SECONDS", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the process must not start with.
func (c *Config) Validate() error {
	return c.Auth.Validate()
}

// Validate checks the token settings.
func (a AuthConfig) Validate() error {
	if a.JWTSecret == "" {
		return fmt.Errorf("%w: AUTH_JWT_SECRET is required", domain.ErrConfiguration)
	}
	if a.AccessTokenTTLMinutes <= 0 {
		return fmt.Errorf("%w: AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive", domain.ErrConfiguration)
	}
	catalog, err := domain.NewRoleCatalog(a.Roles)
	if err != nil {
		return err
	}
	if _, err := catalog.Parse(a.DefaultRole); err != nil {
		return fmt.Errorf("%w: AUTH_DEFAULT_ROLE: %v", domain.ErrConfiguration, err)
	}
	if (a.SeedAdminEmail == "") != (a.SeedAdminPassword == "") {
		return fmt.Errorf("%w: AUTH_SEED_ADMIN_EMAIL and AUTH_SEED_ADMIN_PASSWORD must be set together", domain.ErrConfiguration)
	}
	return nil
}

// AccessTokenTTL returns the token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// LoginRateWindow returns the login limiter window.
func (a AuthConfig) LoginRateWindow() time.Duration {
	if a.LoginRateWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(a.LoginRateWindowSeconds) * time.Second
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		out := make([]string, len(fallback))
		copy(out, fallback)
		return out
	}
	return strings.Split(val, ",")
}
