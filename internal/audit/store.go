package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("attempt log unavailable")

// Retention is the attempt log TTL.
const Retention = 30 * 24 * time.Hour

// Store appends attempt records to Redis and indexes them by (email, type),
// by IP, and globally for aggregate queries. Records and index entries both
// expire after Retention.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	logger *zap.Logger
}

func NewStore(redisClient redis.UniversalClient, prefix string, logger *zap.Logger) *Store {
	if prefix == "" {
		prefix = "va"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
		logger: logger,
	}
}

func (s *Store) recordKey(id string) string {
	return s.prefix + ":rec:" + id
}

func (s *Store) pairIndexKey(codeType, email string) string {
	return s.prefix + ":idx:pair:" + codeType + ":" + email
}

func (s *Store) ipIndexKey(ip string) string {
	return s.prefix + ":idx:ip:" + ip
}

func (s *Store) globalIndexKey() string {
	return s.prefix + ":idx:all"
}

// Insert assigns the attempt an ID, computes its risk score (write-once),
// persists it with the retention TTL, and indexes it. Suspicious inserts
// emit a structured warning for downstream alerting; actually alerting on it
// is an external collaborator's job.
func (s *Store) Insert(ctx context.Context, attempt *Attempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	attempt.RiskScore = CalculateRiskScore(attempt)

	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrUnavailable, err)
	}

	if err := s.redis.Set(ctx, s.recordKey(attempt.ID), data, Retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	score := float64(attempt.Timestamp.Unix())
	entry := redis.Z{Score: score, Member: attempt.ID}
	cutoff := strconv.FormatInt(attempt.Timestamp.Add(-Retention).Unix(), 10)

	for _, key := range []string{
		s.pairIndexKey(attempt.Type, attempt.Email),
		s.ipIndexKey(attempt.IPAddress),
		s.globalIndexKey(),
	} {
		if err := s.redis.ZAdd(ctx, key, entry).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		_ = s.redis.ZRemRangeByScore(ctx, key, "-inf", cutoff).Err()
		_ = s.redis.Expire(ctx, key, Retention).Err()
	}

	if attempt.alertWorthy() {
		s.logger.Warn("suspicious verification attempt",
			zap.String("email", attempt.Email),
			zap.String("type", attempt.Type),
			zap.String("result", string(attempt.Result)),
			zap.String("ip", attempt.IPAddress),
			zap.Int("risk_score", attempt.RiskScore),
			zap.Duration("response_time", attempt.ResponseTime),
		)
	}

	return nil
}

// ListSince returns attempts for (email, type) newer than the cutoff, oldest
// first. Attempt history is keyed by value, not by code record, so it
// survives code expiry and deletion.
func (s *Store) ListSince(ctx context.Context, email, codeType string, since time.Time) ([]Attempt, error) {
	return s.fetchIndex(ctx, s.pairIndexKey(codeType, email), since)
}

// ListAllSince returns every attempt newer than the cutoff, oldest first.
func (s *Store) ListAllSince(ctx context.Context, since time.Time) ([]Attempt, error) {
	return s.fetchIndex(ctx, s.globalIndexKey(), since)
}

// ListByIPSince returns attempts from one IP newer than the cutoff.
func (s *Store) ListByIPSince(ctx context.Context, ip string, since time.Time) ([]Attempt, error) {
	return s.fetchIndex(ctx, s.ipIndexKey(ip), since)
}

func (s *Store) fetchIndex(ctx context.Context, key string, since time.Time) ([]Attempt, error) {
	ids, err := s.redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	attempts := make([]Attempt, 0, len(ids))
	for _, id := range ids {
		data, err := s.redis.Get(ctx, s.recordKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Record expired ahead of its index entry.
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		var attempt Attempt
		if err := json.Unmarshal(data, &attempt); err != nil {
			continue
		}
		attempts = append(attempts, attempt)
	}

	return attempts, nil
}

// FailureRate reports the share of non-success attempts for (email, type)
// over the trailing window. Zero attempts yields a zero rate.
func (s *Store) FailureRate(ctx context.Context, email, codeType string, window time.Duration, now time.Time) (float64, error) {
	attempts, err := s.ListSince(ctx, email, codeType, now.Add(-window))
	if err != nil {
		return 0, err
	}
	if len(attempts) == 0 {
		return 0, nil
	}

	failures := 0
	for _, a := range attempts {
		if a.Result != ResultSuccess {
			failures++
		}
	}
	return float64(failures) / float64(len(attempts)), nil
}

// SuspiciousGroup is one (ip, email) cluster from the suspicious-activity rollup.
type SuspiciousGroup struct {
	IPAddress    string
	Email        string
	AttemptCount int
	AvgRiskScore float64
	LastSeen     time.Time
}

// SuspiciousActivity groups attempts over the trailing window by (ip, email),
// keeps groups with at least three attempts, and sorts by average risk then
// attempt count, both descending.
func (s *Store) SuspiciousActivity(ctx context.Context, window time.Duration, now time.Time) ([]SuspiciousGroup, error) {
	attempts, err := s.ListAllSince(ctx, now.Add(-window))
	if err != nil {
		return nil, err
	}

	type aggregate struct {
		count    int
		riskSum  int
		lastSeen time.Time
	}
	groups := make(map[[2]string]*aggregate)
	for _, a := range attempts {
		key := [2]string{a.IPAddress, a.Email}
		agg := groups[key]
		if agg == nil {
			agg = &aggregate{}
			groups[key] = agg
		}
		agg.count++
		agg.riskSum += a.RiskScore
		if a.Timestamp.After(agg.lastSeen) {
			agg.lastSeen = a.Timestamp
		}
	}

	result := make([]SuspiciousGroup, 0, len(groups))
	for key, agg := range groups {
		if agg.count < 3 {
			continue
		}
		result = append(result, SuspiciousGroup{
			IPAddress:    key[0],
			Email:        key[1],
			AttemptCount: agg.count,
			AvgRiskScore: float64(agg.riskSum) / float64(agg.count),
			LastSeen:     agg.lastSeen,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AvgRiskScore != result[j].AvgRiskScore {
			return result[i].AvgRiskScore > result[j].AvgRiskScore
		}
		return result[i].AttemptCount > result[j].AttemptCount
	})

	return result, nil
}

// HourlyHistogram buckets attempts over the trailing window by hour of day
// and result type.
func (s *Store) HourlyHistogram(ctx context.Context, window time.Duration, now time.Time) (map[int]map[Result]int, error) {
	attempts, err := s.ListAllSince(ctx, now.Add(-window))
	if err != nil {
		return nil, err
	}

	histogram := make(map[int]map[Result]int)
	for _, a := range attempts {
		hour := a.Timestamp.Hour()
		if histogram[hour] == nil {
			histogram[hour] = make(map[Result]int)
		}
		histogram[hour][a.Result]++
	}
	return histogram, nil
}

// Summary aggregates the window for engine statistics: verify call volume,
// success share, mean attempts per (email, type) pair, and the failure
// reason breakdown in descending count order.
type Summary struct {
	TotalAttempts   int64
	TotalSuccess    int64
	SuccessRate     float64
	AverageAttempts float64
	FailureReasons  []ReasonCount
}

// ReasonCount is one entry of the failure breakdown.
type ReasonCount struct {
	Reason string
	Count  int
}

// Summarize computes the Summary over the trailing window.
func (s *Store) Summarize(ctx context.Context, window time.Duration, now time.Time) (Summary, error) {
	attempts, err := s.ListAllSince(ctx, now.Add(-window))
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	summary.TotalAttempts = int64(len(attempts))
	if len(attempts) == 0 {
		return summary, nil
	}

	reasons := make(map[string]int)
	pairs := make(map[[2]string]int)
	for _, a := range attempts {
		pairs[[2]string{a.Email, a.Type}]++
		if a.Result == ResultSuccess {
			summary.TotalSuccess++
			continue
		}
		reasons[string(a.Result)]++
	}

	summary.SuccessRate = float64(summary.TotalSuccess) / float64(summary.TotalAttempts)
	summary.AverageAttempts = float64(summary.TotalAttempts) / float64(len(pairs))

	summary.FailureReasons = make([]ReasonCount, 0, len(reasons))
	for reason, count := range reasons {
		summary.FailureReasons = append(summary.FailureReasons, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(summary.FailureReasons, func(i, j int) bool {
		if summary.FailureReasons[i].Count != summary.FailureReasons[j].Count {
			return summary.FailureReasons[i].Count > summary.FailureReasons[j].Count
		}
		return summary.FailureReasons[i].Reason < summary.FailureReasons[j].Reason
	})

	return summary, nil
}
