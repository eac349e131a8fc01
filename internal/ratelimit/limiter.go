// Package ratelimit bounds requests per identity with a fixed window. Counter
// state lives behind CounterStore so a single process can keep it in memory
// and a fleet can share it through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"siteauth/backend/internal/apperr"
)

// CounterStore counts hits per key within a window. The first hit of a window
// starts it; resetAt is when the current window ends.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (count int64, resetAt time.Time, err error)
}

// Config is {max_requests, window}.
type Config struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // zero when allowed
}

// Limiter applies one Config to any number of identities.
type Limiter struct {
	store CounterStore
	cfg   Config
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a limiter. cfg.Max and cfg.Window must be positive.
func New(store CounterStore, cfg Config, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("ratelimit: store is required")
	}
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("ratelimit: max and window must be positive, got %d/%s", cfg.Max, cfg.Window)
	}
	l := &Limiter{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow counts one request for key. Over the limit it returns a RateLimited
// apperr whose RetryAfter is the rest of the window, at least one second.
// A store failure returns the error with an allowed decision; callers decide
// whether to fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	count, resetAt, err := l.store.Increment(ctx, key, l.cfg.Window, now)
	if err != nil {
		return Decision{Allowed: true, Limit: l.cfg.Max}, fmt.Errorf("ratelimit: %w", err)
	}

	d := Decision{
		Allowed: count <= int64(l.cfg.Max),
		Limit:   l.cfg.Max,
		ResetAt: resetAt,
	}
	if d.Allowed {
		d.Remaining = l.cfg.Max - int(count)
		return d, nil
	}
	d.RetryAfter = retryAfter(resetAt.Sub(now), l.cfg.Window)
	return d, apperr.RateLimited(d.RetryAfter)
}

// Window is the configured window length.
func (l *Limiter) Window() time.Duration { return l.cfg.Window }

// retryAfter rounds the remaining window up to whole seconds within [1s, window].
func retryAfter(remaining, window time.Duration) time.Duration {
	secs := math.Ceil(remaining.Seconds())
	if secs < 1 {
		secs = 1
	}
	d := time.Duration(secs) * time.Second
	if d > window && window >= time.Second {
		d = window.Truncate(time.Second)
	}
	return d
}

// Identity keys. Each namespace is counted independently.

func AccountKey(accountID string) string { return "account:" + accountID }
func APIKeyKey(keyID string) string      { return "apikey:" + keyID }
func IPKey(addr string) string           { return "ip:" + addr }
func LoginKey(email string) string       { return "login:" + email }
