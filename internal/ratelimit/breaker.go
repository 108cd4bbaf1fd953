package ratelimit

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/token-auth/internal/domain"
)

type breakerLimiter struct {
	inner domain.RateLimiter
	cb    *gobreaker.CircuitBreaker
}

// BreakerSettings tunes the circuit breaker placed in front of a remote limiter.
type BreakerSettings struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Logger   *zap.Logger
}

// WithCircuitBreaker stops calling inner after repeated failures so a
// flapping Redis does not add its timeout to every login. While open,
// Allow returns gobreaker.ErrOpenState.
func WithCircuitBreaker(inner domain.RateLimiter, settings BreakerSettings) domain.RateLimiter {
	if settings.Name == "" {
		settings.Name = "login-rate-limiter"
	}
	if settings.Interval <= 0 {
		settings.Interval = 30 * time.Second
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	logger := settings.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &breakerLimiter{inner: inner, cb: cb}
}

func (b *breakerLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Allow(ctx, key, limit, window)
	})
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	return out.(domain.RateLimitDecision), nil
}
