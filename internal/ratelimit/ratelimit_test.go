package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestNoOpRateLimiter(t *testing.T) {
	limiter := &NoOpRateLimiter{}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(ctx, "any-key")
		if err != nil {
			t.Errorf("Allow() error = %v, want nil", err)
		}
		if !allowed {
			t.Errorf("Allow() = false, want true")
		}
	}

	if err := limiter.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestNewRedisRateLimiter_Disabled(t *testing.T) {
	limiter, err := NewRedisRateLimiter("", 100, time.Minute, true)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v, want nil", err)
	}

	allowed, err := limiter.Allow(context.Background(), "test-key")
	if err != nil {
		t.Errorf("Allow() error = %v, want nil", err)
	}
	if !allowed {
		t.Errorf("Allow() = false, want true (disabled limiter should allow all)")
	}
}

func TestNewRedisRateLimiter_InvalidURL(t *testing.T) {
	_, err := NewRedisRateLimiter("not-a-valid-url", 100, time.Minute, false)
	if err == nil {
		t.Error("NewRedisRateLimiter() with invalid URL should return error")
	}
}

func TestSlidingWindowLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewWithClient(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "detector-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	allowed, err := limiter.Allow(ctx, "detector-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Error("request over the limit should be rejected")
	}

	// An unrelated key has its own budget.
	allowed, err = limiter.Allow(ctx, "detector-2")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("different key should be allowed")
	}
}
