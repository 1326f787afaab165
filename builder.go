package verikit

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/verikit/verikit/internal/audit"
	"github.com/verikit/verikit/internal/codes"
	"github.com/verikit/verikit/internal/limiters"
)

// Builder assembles an Engine. Construction is allocation-only; no Redis
// round-trips happen until the first Engine call.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *zap.Logger
	sink   AuditSink
	clock  func() time.Time
	built  bool
}

// New returns a Builder preloaded with the default policy.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the backing Redis client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger used for suspicious-attempt warnings
// and operational errors. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the destination for public audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides the engine's time source. Intended for tests; the
// response-time floor always measures wall-clock time regardless.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles the in-process metrics registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder builds
// exactly once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	b.built = true

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:   b.config,
		codes:    codes.NewStore(b.redis, b.config.Keys.CodePrefix),
		attempts: audit.NewStore(b.redis, b.config.Keys.AttemptPrefix, logger),
		genLimiter: limiters.NewGenerationLimiter(b.redis, b.config.Keys.LimiterPrefix, limiters.GenerationConfig{
			Window:      b.config.RateLimit.Window,
			MaxPerEmail: b.config.RateLimit.MaxPerEmail,
			MaxPerIP:    b.config.RateLimit.MaxPerIP,
		}),
		audit:   newAuditDispatcher(b.config.Audit, b.sink),
		metrics: NewMetrics(b.config.Metrics),
		logger:  logger,
		now:     clock,
	}

	if b.config.RateLimit.VerifyThrottle {
		engine.verLimiter = limiters.NewVerifyLimiter(b.redis, b.config.Keys.LimiterPrefix, limiters.VerifyConfig{
			Window:      b.config.RateLimit.VerifyWindow,
			MaxPerEmail: b.config.RateLimit.VerifyMaxPerEmail,
			MaxPerIP:    b.config.RateLimit.VerifyMaxPerIP,
		})
	}

	return engine, nil
}
