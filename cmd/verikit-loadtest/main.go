// Command verikit-loadtest measures generate and verify throughput against a
// real Redis or an embedded miniredis. Rate limits are raised far above the
// production policy and the response floor is disabled so the run measures
// the engine and store, not the deliberate throttles.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	verikit "github.com/verikit/verikit"
)

func main() {
	_ = godotenv.Load()

	var (
		codes       = flag.Int("codes", 50000, "number of codes to issue and verify")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		floor       = flag.Duration("floor", 0, "verify response floor; 0 disables it for throughput runs")
	)
	flag.Parse()

	if *codes <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "codes and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := verikit.New().
		WithConfig(loadtestConfig(*floor)).
		WithRedis(client).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	issued := make([]string, *codes)
	generateStats := runGeneratePhase(ctx, engine, issued, *concurrency)
	verifyStats := runVerifyPhase(ctx, engine, issued, *concurrency)

	fmt.Println("---- results ----")
	printStats("generate", generateStats)
	printStats("verify", verifyStats)
}

func loadtestConfig(floor time.Duration) verikit.Config {
	cfg := verikit.DefaultConfig()
	cfg.RateLimit.MaxPerEmail = 1 << 20
	cfg.RateLimit.MaxPerIP = 1 << 20
	cfg.RateLimit.VerifyMaxPerEmail = 1 << 20
	cfg.RateLimit.VerifyMaxPerIP = 1 << 20
	cfg.Verify.MinResponseTime = floor
	cfg.Audit.Enabled = false
	return cfg
}

func email(i int) string {
	return fmt.Sprintf("user%d@loadtest.example", i)
}

func runGeneratePhase(ctx context.Context, engine *verikit.Engine, issued []string, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(issued))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(issued) {
					return
				}

				t0 := time.Now()
				result, err := engine.GenerateCode(ctx, verikit.GenerateRequest{
					Email:     email(i),
					Type:      verikit.TypeEmailVerification,
					IPAddress: fmt.Sprintf("203.0.113.%d", worker%200+1),
					UserAgent: "verikit-loadtest/1.0 (synthetic traffic)",
				})
				d := time.Since(t0)

				if err != nil || !result.Success {
					atomic.AddInt64(&failures, 1)
				} else {
					issued[i] = result.Code
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runVerifyPhase(ctx context.Context, engine *verikit.Engine, issued []string, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(issued))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(issued) {
					return
				}
				if issued[i] == "" {
					atomic.AddInt64(&failures, 1)
					continue
				}

				t0 := time.Now()
				result, err := engine.VerifyCode(ctx, verikit.VerifyRequest{
					Email:     email(i),
					Code:      issued[i],
					Type:      verikit.TypeEmailVerification,
					IPAddress: fmt.Sprintf("203.0.113.%d", worker%200+1),
					UserAgent: "verikit-loadtest/1.0 (synthetic traffic)",
				})
				d := time.Since(t0)

				if err != nil || !result.Success {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
