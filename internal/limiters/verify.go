package limiters

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerifyConfig tunes the secondary verification limiter.
type VerifyConfig struct {
	Window      time.Duration
	MaxPerEmail int
	MaxPerIP    int
}

// VerifyLimiter bounds total verification calls per email and per IP,
// independent of the per-code attempt counter. Without it an attacker could
// sidestep lockout by forcing fresh codes through legitimate resend flows
// faster than lockouts accumulate.
type VerifyLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config VerifyConfig
}

func NewVerifyLimiter(redisClient redis.UniversalClient, prefix string, cfg VerifyConfig) *VerifyLimiter {
	if prefix == "" {
		prefix = "vrl"
	}
	return &VerifyLimiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

func (l *VerifyLimiter) emailKey(email string) string {
	return l.prefix + ":ver:email:" + email
}

func (l *VerifyLimiter) ipKey(ip string) string {
	return l.prefix + ":ver:ip:" + ip
}

// Allow records one verification call on both axes and reports whether it
// was within budget.
func (l *VerifyLimiter) Allow(ctx context.Context, email, ip string) (bool, error) {
	emailCount, err := incrementWithTTL(ctx, l.redis, l.emailKey(email), l.config.Window)
	if err != nil {
		return false, err
	}

	ipCount, err := incrementWithTTL(ctx, l.redis, l.ipKey(ip), l.config.Window)
	if err != nil {
		return false, err
	}

	return emailCount <= int64(l.config.MaxPerEmail) && ipCount <= int64(l.config.MaxPerIP), nil
}
