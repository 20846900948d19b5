package utils

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"canvascli/internal"
)

// TokenBucketLimiter implements bandwidth limiting using a token bucket.
// A zero or negative rate disables limiting.
type TokenBucketLimiter struct {
	rate       int64
	bucket     int64
	maxBucket  int64
	lastUpdate time.Time
	mutex      sync.Mutex
}

// NewTokenBucketLimiter creates a new rate limiter
func NewTokenBucketLimiter(bytesPerSecond int64) internal.RateLimiter {
	return &TokenBucketLimiter{
		rate:       bytesPerSecond,
		bucket:     bytesPerSecond,
		maxBucket:  bytesPerSecond,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until n bytes worth of tokens are available or the context is
// cancelled
func (l *TokenBucketLimiter) Wait(ctx context.Context, n int) error {
	if l.rate <= 0 {
		return nil
	}

	for {
		l.mutex.Lock()
		l.refill()

		if l.bucket >= int64(n) {
			l.bucket -= int64(n)
			l.mutex.Unlock()
			return nil
		}

		deficit := int64(n) - l.bucket
		l.mutex.Unlock()

		wait := time.Duration(float64(deficit) / float64(l.rate) * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetRate updates the limit; takes effect on the next Wait
func (l *TokenBucketLimiter) SetRate(bytesPerSecond int64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.rate = bytesPerSecond
	l.maxBucket = bytesPerSecond
	if l.bucket > l.maxBucket {
		l.bucket = l.maxBucket
	}
}

// refill adds tokens for the elapsed time; caller holds the mutex
func (l *TokenBucketLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.bucket += int64(elapsed * float64(l.rate))
	if l.bucket > l.maxBucket {
		l.bucket = l.maxBucket
	}
}

// ParseRateLimit parses a human-readable rate like 5M, 500K, 2G, or a plain
// byte count into bytes per second
func ParseRateLimit(input string) (int64, error) {
	input = strings.TrimSpace(strings.ToUpper(input))
	if input == "" {
		return 0, fmt.Errorf("rate limit cannot be empty")
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(input, "K"):
		multiplier = 1024
		input = strings.TrimSuffix(input, "K")
	case strings.HasSuffix(input, "M"):
		multiplier = 1024 * 1024
		input = strings.TrimSuffix(input, "M")
	case strings.HasSuffix(input, "G"):
		multiplier = 1024 * 1024 * 1024
		input = strings.TrimSuffix(input, "G")
	}

	value, err := strconv.ParseInt(input, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid rate limit value: %s", input)
	}

	return value * multiplier, nil
}

// LimitedReader wraps r so that reads respect the limiter
func LimitedReader(ctx context.Context, r io.Reader, limiter internal.RateLimiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &limitedReader{ctx: ctx, inner: r, limiter: limiter}
}

type limitedReader struct {
	ctx     context.Context
	inner   io.Reader
	limiter internal.RateLimiter
}

func (r *limitedReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		if werr := r.limiter.Wait(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
