package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("rate limiter unavailable")

// GenerationConfig tunes the issuance limiter.
type GenerationConfig struct {
	Window      time.Duration
	MaxPerEmail int
	MaxPerIP    int
}

// Decision is the outcome of one limiter check. Remaining refers to the
// email axis, the one users observe. ResetAt is the end of the current fixed
// window; callers must not assume exact reset timing.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// GenerationLimiter counts code issuance per email and per IP inside a fixed
// window. Both axes must be under their caps for issuance to proceed. The
// count-then-create pair is not atomic with record creation; a concurrent
// burst can slightly exceed the caps, which is accepted.
type GenerationLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config GenerationConfig
}

func NewGenerationLimiter(redisClient redis.UniversalClient, prefix string, cfg GenerationConfig) *GenerationLimiter {
	if prefix == "" {
		prefix = "vrl"
	}
	return &GenerationLimiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

func (l *GenerationLimiter) emailKey(email string) string {
	return l.prefix + ":gen:email:" + email
}

func (l *GenerationLimiter) ipKey(ip string) string {
	return l.prefix + ":gen:ip:" + ip
}

// Allow records one issuance event on both axes and reports whether it was
// within budget. Denied events still consume a counter slot; an attacker
// hammering the endpoint never sees the window refill early.
func (l *GenerationLimiter) Allow(ctx context.Context, email, ip string, now time.Time) (Decision, error) {
	emailCount, err := incrementWithTTL(ctx, l.redis, l.emailKey(email), l.config.Window)
	if err != nil {
		return Decision{}, err
	}

	ipCount, err := incrementWithTTL(ctx, l.redis, l.ipKey(ip), l.config.Window)
	if err != nil {
		return Decision{}, err
	}

	resetAt := l.resetAt(ctx, l.emailKey(email), now)

	if emailCount > int64(l.config.MaxPerEmail) || ipCount > int64(l.config.MaxPerIP) {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	remaining := l.config.MaxPerEmail - int(emailCount)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}

func (l *GenerationLimiter) resetAt(ctx context.Context, key string, now time.Time) time.Time {
	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return now.Add(l.config.Window)
	}
	return now.Add(ttl)
}

func incrementWithTTL(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set only by the first hit.
	if count == 1 {
		if err := client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}
