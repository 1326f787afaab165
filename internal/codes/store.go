package codes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound    = errors.New("verification code not found")
	ErrUnavailable = errors.New("code store unavailable")
)

// issuedIndexRetention bounds the issuance time index used by statistics.
const issuedIndexRetention = 7 * 24 * time.Hour

// Store keeps one record per (email, type) pair plus an active-value
// reservation index. Overwriting the record key on reissue is what enforces
// the single-usable-code policy; the reservation index is what makes the
// "is this candidate value already live?" check a store-level uniqueness
// claim instead of a racy read.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "vc"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) recordKey(codeType, email string) string {
	return s.prefix + ":rec:" + codeType + ":" + email
}

func (s *Store) valueKey(codeType, code string) string {
	return s.prefix + ":val:" + codeType + ":" + code
}

func (s *Store) issuedKey() string {
	return s.prefix + ":idx:issued"
}

// Save persists a freshly issued record and registers it in the issuance
// time index. The record key outlives the code's validity window by
// UsedRetention so lifecycle state stays queryable until cleanup.
func (s *Store) Save(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrUnavailable, err)
	}

	key := s.recordKey(record.Type, record.Email)
	if err := s.redis.Set(ctx, key, data, UsedRetention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	member := uuid.NewString()
	if err := s.redis.ZAdd(ctx, s.issuedKey(), redis.Z{
		Score:  float64(record.CreatedAt.Unix()),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cutoff := record.CreatedAt.Add(-issuedIndexRetention).Unix()
	_ = s.redis.ZRemRangeByScore(ctx, s.issuedKey(), "-inf", strconv.FormatInt(cutoff, 10)).Err()

	return nil
}

// Latest returns the most recently issued record for (email, type). The
// lookup key never contains the presented code, so code values are only ever
// compared, never queried.
func (s *Store) Latest(ctx context.Context, email, codeType string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.recordKey(codeType, email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return &record, nil
}

// Update rewrites a record in place, preserving its remaining retention TTL.
func (s *Store) Update(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrUnavailable, err)
	}

	key := s.recordKey(record.Type, record.Email)
	if err := s.redis.Set(ctx, key, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ReserveValue claims (code, type) in the active-value index for the code's
// validity window. A false return means another live code already holds the
// value; the caller treats that as the retry signal during unique allocation.
func (s *Store) ReserveValue(ctx context.Context, codeType, code string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.valueKey(codeType, code), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// ReleaseValue frees a reservation early, once its code is used or invalidated.
func (s *Store) ReleaseValue(ctx context.Context, codeType, code string) error {
	if err := s.redis.Del(ctx, s.valueKey(codeType, code)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// InvalidateUnused marks any live unused code for (email, type) as used
// without a match and frees its value reservation. Returns the number of
// codes invalidated (0 or 1; the store holds one record per pair).
func (s *Store) InvalidateUnused(ctx context.Context, email, codeType string, now time.Time) (int, error) {
	record, err := s.Latest(ctx, email, codeType)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if record.Used || record.IsExpired(now) {
		return 0, nil
	}

	record.MarkUsed(now)
	if err := s.Update(ctx, record); err != nil {
		return 0, err
	}
	if err := s.ReleaseValue(ctx, codeType, record.Code); err != nil {
		return 0, err
	}
	return 1, nil
}

// Cleanup scans all records and deletes those past their terminal condition:
// unused records whose validity expired, and used records older than
// UsedRetention. Idempotent and safe to run concurrently with live traffic.
func (s *Store) Cleanup(ctx context.Context, now time.Time) (int, error) {
	deleted := 0

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":rec:*", 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, key := range keys {
			data, err := s.redis.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}

			var record Record
			if err := json.Unmarshal(data, &record); err != nil {
				// Unreadable record: drop it rather than leak it forever.
				if delErr := s.redis.Del(ctx, key).Err(); delErr == nil {
					deleted++
				}
				continue
			}

			expiredUnused := !record.Used && record.IsExpired(now)
			staleUsed := record.Used && record.UsedAt != nil && now.Sub(*record.UsedAt) > UsedRetention
			if !expiredUnused && !staleUsed {
				continue
			}

			if err := s.redis.Del(ctx, key).Err(); err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			deleted++

			if !record.Used {
				_ = s.ReleaseValue(ctx, record.Type, record.Code)
			}
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// CountIssuedSince reports how many codes were issued at or after the cutoff.
func (s *Store) CountIssuedSince(ctx context.Context, since time.Time) (int64, error) {
	count, err := s.redis.ZCount(ctx, s.issuedKey(),
		strconv.FormatInt(since.Unix(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}
