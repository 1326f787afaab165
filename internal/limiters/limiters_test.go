package limiters

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestGenerationLimiterEmailCap(t *testing.T) {
	_, rdb := newTestRedis(t)
	limiter := NewGenerationLimiter(rdb, "vrl", GenerationConfig{
		Window:      time.Hour,
		MaxPerEmail: 5,
		MaxPerIP:    10,
	})

	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		decision, err := limiter.Allow(ctx, "user@example.com", "198.51.100.4", now)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("issuance %d denied", i+1)
		}
		if decision.Remaining != 5-(i+1) {
			t.Fatalf("remaining = %d after issuance %d", decision.Remaining, i+1)
		}
	}

	decision, err := limiter.Allow(ctx, "user@example.com", "198.51.100.4", now)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("6th issuance for same email should be denied")
	}
	if decision.Remaining != 0 {
		t.Fatalf("denied decision remaining = %d, want 0", decision.Remaining)
	}
	if decision.ResetAt.Before(now) || decision.ResetAt.After(now.Add(time.Hour+time.Second)) {
		t.Fatalf("resetAt %v outside window", decision.ResetAt)
	}
}

func TestGenerationLimiterIPCapAcrossEmails(t *testing.T) {
	_, rdb := newTestRedis(t)
	limiter := NewGenerationLimiter(rdb, "vrl", GenerationConfig{
		Window:      time.Hour,
		MaxPerEmail: 5,
		MaxPerIP:    10,
	})

	ctx := context.Background()
	now := time.Now()

	// Ten issuances from the same IP across distinct emails are allowed.
	for i := 0; i < 10; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		decision, err := limiter.Allow(ctx, email, "203.0.113.50", now)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("issuance %d for distinct email denied before IP cap", i+1)
		}
	}

	decision, err := limiter.Allow(ctx, "user99@example.com", "203.0.113.50", now)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("11th issuance from the same IP should be denied")
	}
}

func TestGenerationLimiterWindowExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	limiter := NewGenerationLimiter(rdb, "vrl", GenerationConfig{
		Window:      time.Hour,
		MaxPerEmail: 1,
		MaxPerIP:    10,
	})

	ctx := context.Background()
	now := time.Now()

	if d, err := limiter.Allow(ctx, "user@example.com", "198.51.100.4", now); err != nil || !d.Allowed {
		t.Fatalf("first issuance: %+v err=%v", d, err)
	}
	if d, err := limiter.Allow(ctx, "user@example.com", "198.51.100.4", now); err != nil || d.Allowed {
		t.Fatalf("second issuance should be denied: %+v err=%v", d, err)
	}

	mr.FastForward(time.Hour + time.Minute)

	if d, err := limiter.Allow(ctx, "user@example.com", "198.51.100.4", now); err != nil || !d.Allowed {
		t.Fatalf("issuance after window should be allowed: %+v err=%v", d, err)
	}
}

func TestVerifyLimiter(t *testing.T) {
	_, rdb := newTestRedis(t)
	limiter := NewVerifyLimiter(rdb, "vrl", VerifyConfig{
		Window:      time.Hour,
		MaxPerEmail: 3,
		MaxPerIP:    100,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user@example.com", "198.51.100.4")
		if err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v", i+1, ok, err)
		}
	}

	ok, err := limiter.Allow(ctx, "user@example.com", "198.51.100.4")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if ok {
		t.Fatal("4th verify call should exceed the email budget")
	}

	// A different email from the same IP is still within the IP budget.
	ok, err = limiter.Allow(ctx, "other@example.com", "198.51.100.4")
	if err != nil || !ok {
		t.Fatalf("distinct email should be allowed: ok=%v err=%v", ok, err)
	}
}
