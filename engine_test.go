package verikit

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// testClock is an adjustable time source so lock and expiry windows can be
// crossed without sleeping.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{
		now: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
	}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// newTestEngine builds an engine with the response floor removed so tests
// stay fast; the floor itself is covered by the timing tests.
func newTestEngine(t *testing.T, mutate func(*Config)) (*miniredis.Miniredis, *Engine, *testClock) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	cfg := defaultConfig()
	cfg.Verify.MinResponseTime = 0
	cfg.Audit.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return mr, engine, clock
}

func testGenerateRequest(email string) GenerateRequest {
	return GenerateRequest{
		Email:     email,
		Type:      TypeTwoFactor,
		IPAddress: "203.0.113.10",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101",
	}
}

func testVerifyRequest(email, code string) VerifyRequest {
	return VerifyRequest{
		Email:     email,
		Code:      code,
		Type:      TypeTwoFactor,
		IPAddress: "203.0.113.10",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101",
	}
}

func mustGenerate(t *testing.T, engine *Engine, email string) string {
	t.Helper()

	result, err := engine.GenerateCode(context.Background(), testGenerateRequest(email))
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("GenerateCode denied: %q", result.Error)
	}
	return result.Code
}

func TestGenerateCodeSuccess(t *testing.T) {
	mr, engine, clock := newTestEngine(t, nil)

	result, err := engine.GenerateCode(context.Background(), testGenerateRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if !testCodePattern.MatchString(result.Code) {
		t.Fatalf("expected six-digit code, got %q", result.Code)
	}
	if want := clock.Now().Add(10 * time.Minute); !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, result.ExpiresAt)
	}
	if result.RateLimit == nil || result.RateLimit.Remaining != 4 {
		t.Fatalf("expected 4 remaining issuances, got %+v", result.RateLimit)
	}
	if !mr.Exists("vc:rec:2fa:alice@example.com") {
		t.Fatal("expected code record key in redis")
	}
	if !mr.Exists("vc:val:2fa:" + result.Code) {
		t.Fatal("expected value reservation key in redis")
	}
}

func TestGenerateCodeNormalizesEmail(t *testing.T) {
	mr, engine, _ := newTestEngine(t, nil)

	result, err := engine.GenerateCode(context.Background(), testGenerateRequest("  Alice@Example.COM "))
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if !mr.Exists("vc:rec:2fa:alice@example.com") {
		t.Fatal("expected record under the normalized email key")
	}
}

func TestGenerateCodeRejectsBadInput(t *testing.T) {
	_, engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  GenerateRequest
	}{
		{"bad email", GenerateRequest{Email: "not-an-email", Type: TypeTwoFactor, IPAddress: "203.0.113.10", UserAgent: "Mozilla/5.0 Gecko"}},
		{"injection email", GenerateRequest{Email: "a<script>@example.com", Type: TypeTwoFactor, IPAddress: "203.0.113.10", UserAgent: "Mozilla/5.0 Gecko"}},
		{"unknown type", GenerateRequest{Email: "alice@example.com", Type: CodeType("magic_link"), IPAddress: "203.0.113.10", UserAgent: "Mozilla/5.0 Gecko"}},
		{"bad ip", GenerateRequest{Email: "alice@example.com", Type: TypeTwoFactor, IPAddress: "not-an-ip", UserAgent: "Mozilla/5.0 Gecko"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := engine.GenerateCode(ctx, tc.req)
			if err != nil {
				t.Fatalf("expected policy denial, got error %v", err)
			}
			if result.Success {
				t.Fatal("expected denial")
			}
			if result.Error != MsgInvalidRequest {
				t.Fatalf("expected %q, got %q", MsgInvalidRequest, result.Error)
			}
		})
	}
}

func TestGenerateCodeEmailRateLimit(t *testing.T) {
	_, engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := engine.GenerateCode(ctx, testGenerateRequest("alice@example.com"))
		if err != nil {
			t.Fatalf("GenerateCode %d failed: %v", i+1, err)
		}
		if !result.Success {
			t.Fatalf("GenerateCode %d denied: %q", i+1, result.Error)
		}
		if want := 4 - i; result.RateLimit.Remaining != want {
			t.Fatalf("call %d: expected %d remaining, got %d", i+1, want, result.RateLimit.Remaining)
		}
	}

	result, err := engine.GenerateCode(ctx, testGenerateRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if result.Success || result.Error != MsgRateLimited {
		t.Fatalf("expected rate limit denial, got %+v", result)
	}
	if result.RateLimit == nil || result.RateLimit.Remaining != 0 {
		t.Fatalf("expected zero remaining, got %+v", result.RateLimit)
	}
}

func TestGenerateCodeIPRateLimit(t *testing.T) {
	_, engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	emails := []string{
		"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com",
		"f@example.com", "g@example.com", "h@example.com", "i@example.com", "j@example.com",
	}
	for i, email := range emails {
		result, err := engine.GenerateCode(ctx, testGenerateRequest(email))
		if err != nil {
			t.Fatalf("GenerateCode %d failed: %v", i+1, err)
		}
		if !result.Success {
			t.Fatalf("GenerateCode %d denied: %q", i+1, result.Error)
		}
	}

	result, err := engine.GenerateCode(ctx, testGenerateRequest("k@example.com"))
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if result.Success || result.Error != MsgRateLimited {
		t.Fatalf("expected IP rate limit denial, got %+v", result)
	}
}

func TestGenerateCodeInvalidatesPriorCode(t *testing.T) {
	_, engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	first := mustGenerate(t, engine, "alice@example.com")
	second := mustGenerate(t, engine, "alice@example.com")
	if first == second {
		t.Skip("reissued value collided with the first; nothing to assert")
	}

	result, err := engine.VerifyCode(ctx, testVerifyRequest("alice@example.com", first))
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if result.Success {
		t.Fatal("expected superseded code to fail verification")
	}

	result, err = engine.VerifyCode(ctx, testVerifyRequest("alice@example.com", second))
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected latest code to verify, got %q", result.Error)
	}
}

func TestResendCode(t *testing.T) {
	_, engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	first := mustGenerate(t, engine, "alice@example.com")

	result, err := engine.ResendCode(ctx, testGenerateRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("ResendCode failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("ResendCode denied: %q", result.Error)
	}
	// Resends draw from the same issuance budget as fresh generation.
	if result.RateLimit.Remaining != 3 {
		t.Fatalf("expected 3 remaining after generate+resend, got %d", result.RateLimit.Remaining)
	}
	if engine.MetricsSnapshot().Counters[MetricResend] != 1 {
		t.Fatal("expected resend metric increment")
	}

	if first != result.Code {
		verify, err := engine.VerifyCode(ctx, testVerifyRequest("alice@example.com", first))
		if err != nil {
			t.Fatalf("VerifyCode failed: %v", err)
		}
		if verify.Success {
			t.Fatal("expected pre-resend code to be invalid")
		}
	}
}

func TestGenerateCodeRedisUnavailable(t *testing.T) {
	mr, engine, _ := newTestEngine(t, nil)
	mr.Close()

	_, err := engine.GenerateCode(context.Background(), testGenerateRequest("alice@example.com"))
	if !errors.Is(err, ErrLimiterUnavailable) {
		t.Fatalf("expected ErrLimiterUnavailable, got %v", err)
	}
}
