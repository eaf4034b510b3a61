package graph

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy bounds retries of throttled (429/503) calls.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// Step is the fallback unit: retry n (1-based) waits n*Step when
	// the server sends no usable Retry-After.
	Step time.Duration
}

// DefaultRetryPolicy retries four times, waiting 0.8s, 1.6s, 2.4s and 3.2s by default.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 4, Step: 800 * time.Millisecond}
}

// Delay returns the wait before retry number n (1-based).
func (p RetryPolicy) Delay(n int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	return time.Duration(n) * p.Step
}

// parseRetryAfter reads a Retry-After value given in seconds.
// HTTP dates and non-positive values are ignored.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
