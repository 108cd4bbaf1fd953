package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "a@x.com", 3, time.Minute)
		if err != nil || !d.Allowed {
			t.Fatalf("attempt %d: %+v %v", i+1, d, err)
		}
		if d.Remaining != 2-i {
			t.Fatalf("attempt %d: remaining %d", i+1, d.Remaining)
		}
	}

	d, err := limiter.Allow(ctx, "a@x.com", 3, time.Minute)
	if err != nil || d.Allowed {
		t.Fatalf("expected fourth attempt to be denied, got %+v %v", d, err)
	}

	other, _ := limiter.Allow(ctx, "b@x.com", 3, time.Minute)
	if !other.Allowed {
		t.Fatal("keys must be counted independently")
	}

	now = now.Add(time.Minute)
	d, err = limiter.Allow(ctx, "a@x.com", 3, time.Minute)
	if err != nil || !d.Allowed {
		t.Fatalf("expected new window to allow, got %+v %v", d, err)
	}
}

func TestMemoryLimiterDisabled(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	for i := 0; i < 100; i++ {
		d, err := limiter.Allow(context.Background(), "k", 0, time.Second)
		if err != nil || !d.Allowed {
			t.Fatalf("limit 0 must disable limiting: %+v %v", d, err)
		}
	}
}

func TestMemoryLimiterCapacity(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }, MaxKeys: 1})
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "a", 5, time.Minute); err != nil {
		t.Fatalf("first key: %v", err)
	}
	if _, err := limiter.Allow(ctx, "b", 5, time.Minute); err == nil {
		t.Fatal("expected capacity error")
	}

	now = now.Add(2 * time.Minute)
	if _, err := limiter.Allow(ctx, "b", 5, time.Minute); err != nil {
		t.Fatalf("expected expired keys to be collected, got %v", err)
	}
}
