// Package random generates verification codes and opaque tokens from the
// operating system's cryptographically secure source. There is no fallback:
// if crypto/rand fails, every function here fails with it.
package random

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	codeMin  = 100000
	codeSpan = 900000

	// MinTokenBytes and MaxTokenBytes bound Token input lengths.
	MinTokenBytes = 16
	MaxTokenBytes = 64

	// MinAlphanumericLen and MaxAlphanumericLen bound Alphanumeric input lengths.
	MinAlphanumericLen = 4
	MaxAlphanumericLen = 128

	// collisionBackoffAfter is the consecutive-collision count past which
	// UniqueCode starts sleeping between retries to dampen contention.
	collisionBackoffAfter = 10
	backoffStep           = 10 * time.Millisecond
)

var (
	ErrExhausted          = errors.New("unable to allocate unique code")
	ErrInvalidTokenLength = errors.New("token length out of range")
	ErrInvalidAlnumLength = errors.New("alphanumeric length out of range")
)

const alnumCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Code draws a uniformly distributed 6-digit code in [100000, 999999].
func Code() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("secure random source unavailable: %w", err)
	}
	return fmt.Sprintf("%06d", codeMin+n.Int64()), nil
}

// UniqueCode generates candidates until isDuplicate reports one unused, up to
// maxAttempts. After collisionBackoffAfter consecutive collisions each retry
// is preceded by a jittered delay of attempt*10ms to spread contention.
// Exhausting maxAttempts returns ErrExhausted; callers must treat that as a
// service outage, not a retryable validation failure.
func UniqueCode(ctx context.Context, isDuplicate func(string) (bool, error), maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 100
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt >= collisionBackoffAfter {
			if err := sleepJittered(ctx, time.Duration(attempt)*backoffStep); err != nil {
				return "", err
			}
		}

		candidate, err := Code()
		if err != nil {
			return "", err
		}

		dup, err := isDuplicate(candidate)
		if err != nil {
			return "", err
		}
		if !dup {
			return candidate, nil
		}
	}

	return "", ErrExhausted
}

// Token returns a hex-encoded secure token of the given byte length.
// Lengths outside [MinTokenBytes, MaxTokenBytes] are rejected, not clamped.
func Token(lengthBytes int) (string, error) {
	if lengthBytes < MinTokenBytes || lengthBytes > MaxTokenBytes {
		return "", ErrInvalidTokenLength
	}

	buf := make([]byte, lengthBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("secure random source unavailable: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Alphanumeric returns a secure random string of letters and digits.
// Lengths outside [MinAlphanumericLen, MaxAlphanumericLen] are rejected.
func Alphanumeric(length int) (string, error) {
	if length < MinAlphanumericLen || length > MaxAlphanumericLen {
		return "", ErrInvalidAlnumLength
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alnumCharset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("secure random source unavailable: %w", err)
		}
		b.WriteByte(alnumCharset[n.Int64()])
	}

	return b.String(), nil
}

// compareMaxLen bounds ConstantTimeEqual inputs. Large enough for any token
// this package produces (64 bytes hex-encoded).
const compareMaxLen = 128

// ConstantTimeEqual compares two secrets without leaking the position of the
// first differing byte or, for inputs up to compareMaxLen, their lengths.
// Both values are padded to a fixed width before comparison, so unlike a
// length-check fast exit this is safe for variable-length secrets.
func ConstantTimeEqual(a, b string) bool {
	if len(a) > compareMaxLen || len(b) > compareMaxLen {
		// Oversized input is outside this engine's secret space.
		return false
	}

	var pa, pb [compareMaxLen]byte
	copy(pa[:], a)
	copy(pb[:], b)

	lenEqual := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	bytesEqual := subtle.ConstantTimeCompare(pa[:], pb[:])

	return lenEqual&bytesEqual == 1
}

// FixedEqual compares two values that are fixed-width by construction
// (e.g. 6-digit codes). The length fast exit is safe only because length
// carries no secret information in that setting.
func FixedEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func sleepJittered(ctx context.Context, d time.Duration) error {
	jitter, err := rand.Int(rand.Reader, big.NewInt(int64(backoffStep)))
	if err != nil {
		return fmt.Errorf("secure random source unavailable: %w", err)
	}

	timer := time.NewTimer(d + time.Duration(jitter.Int64()))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
