// Package ratelimit implements a per-key fixed-window attempt limiter with
// an in-process backend and a Redis backend for multi-instance deployments.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Policy configures a fixed window: at most Limit attempts per Window,
// counted from the first attempt of the window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy guards redeem attempts.
var DefaultPolicy = Policy{Limit: 10, Window: 15 * time.Minute}

func (p Policy) validate() error {
	if p.Limit <= 0 || p.Window <= 0 {
		return fmt.Errorf("invalid rate limit policy: limit=%d window=%s", p.Limit, p.Window)
	}
	return nil
}

// Decision is the outcome of one attempt.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts attempts per key. Rejected attempts are not counted.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LimitedError carries how long the caller should wait.
type LimitedError struct {
	Key  string
	Wait time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Key, e.Wait.Round(time.Second))
}

// RetryAfter implements the interface the HTTP error handler looks for.
func (e *LimitedError) RetryAfter() time.Duration {
	return e.Wait
}

// Check runs one attempt and returns a *LimitedError when it is rejected.
func Check(ctx context.Context, l Limiter, key string, now time.Time) error {
	d, err := l.Allow(ctx, key)
	if err != nil {
		return err
	}
	if !d.Allowed {
		wait := d.ResetAt.Sub(now)
		if wait < 0 {
			wait = 0
		}
		return &LimitedError{Key: key, Wait: wait}
	}
	return nil
}
