package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory. Counters are not shared
// between instances.
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(policy Policy) (*MemoryLimiter, error) {
	return newMemoryLimiter(policy, time.Now)
}

func newMemoryLimiter(policy Policy, now func() time.Time) (*MemoryLimiter, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		policy:    policy,
		now:       now,
		windows:   make(map[string]*window),
		lastSweep: now(),
	}, nil
}

// Allow records an attempt for key. The read, compare and increment happen
// under one lock.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(l.policy.Window)}
		l.windows[key] = w
		return Decision{Allowed: true, Remaining: l.policy.Limit - 1, ResetAt: w.resetAt}, nil
	}

	if w.count >= l.policy.Limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++
	return Decision{Allowed: true, Remaining: l.policy.Limit - w.count, ResetAt: w.resetAt}, nil
}

// sweepLocked drops expired windows at most once per window length.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
	l.lastSweep = now
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
