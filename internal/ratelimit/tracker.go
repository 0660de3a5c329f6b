// Package ratelimit provides a per-platform request-rate tracker used by
// extraction node strategies to pace outbound calls to a platform's API
// (SPEC_FULL §2 item 13). Process-local, one Tracker per worker.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tracker holds one token-bucket limiter per platform, created lazily
// with a shared default rate until a platform-specific override is set.
type Tracker struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	overrides    map[string]Limit
}

// Limit is a platform-specific rate override: Requests per Per duration.
type Limit struct {
	Requests int
	Per      time.Duration
	Burst    int
}

// New creates a Tracker with a default of defaultRequests per
// defaultPer, applied to any platform without an explicit override.
func New(defaultRequests int, defaultPer time.Duration, defaultBurst int) *Tracker {
	return &Tracker{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(float64(defaultRequests) / defaultPer.Seconds()),
		defaultBurst: defaultBurst,
		overrides:    make(map[string]Limit),
	}
}

// SetLimit overrides the rate applied to a specific platform. Safe to
// call before the platform's limiter has been created.
func (t *Tracker) SetLimit(platform string, limit Limit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[platform] = limit
	delete(t.limiters, platform)
}

func (t *Tracker) limiterFor(platform string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok := t.limiters[platform]; ok {
		return l
	}

	var l *rate.Limiter
	if override, ok := t.overrides[platform]; ok {
		l = rate.NewLimiter(rate.Limit(float64(override.Requests)/override.Per.Seconds()), override.Burst)
	} else {
		l = rate.NewLimiter(t.defaultRate, t.defaultBurst)
	}
	t.limiters[platform] = l
	return l
}

// WaitContext blocks until platform's limiter admits one request, or
// returns an error if ctx is cancelled first.
func (t *Tracker) WaitContext(ctx context.Context, platform string) error {
	if err := t.limiterFor(platform).Wait(ctx); err != nil {
		return fmt.Errorf("ratelimit: wait %s: %w", platform, err)
	}
	return nil
}

// Wait blocks until platform's limiter admits one request. It satisfies
// registry.RateLimiter, whose node-strategy callers have no context to
// pass through.
func (t *Tracker) Wait(platform string) error {
	return t.WaitContext(context.Background(), platform)
}
