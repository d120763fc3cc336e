// Package ratelimit provides sliding-window admission control for incoming
// generation requests. Each client key is limited to a configured number of
// requests within a trailing window; rejection carries the duration until
// the next request would be admitted.
package ratelimit

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool

	// RetryAfter is how long the client must wait before the next request
	// can be admitted. Zero when Allowed.
	RetryAfter time.Duration

	// Remaining is the number of requests left in the current window after
	// this check.
	Remaining int
}

// Err converts a rejection into the error value surfaced to callers. It
// returns nil for an admitted decision.
func (d Decision) Err(clientKey string) error {
	if d.Allowed {
		return nil
	}
	return &types.RateLimited{ClientKey: clientKey, RetryAfter: d.RetryAfter}
}

// Status describes a client's current window without consuming a slot.
type Status struct {
	Requests  int       `json:"requests"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Store is the backing state for the limiter. The in-memory implementation
// is per-process; a distributed deployment supplies a shared store behind
// this same interface.
type Store interface {
	// Take prunes timestamps older than now-window for key, then either
	// appends now and admits, or rejects with the time until the oldest
	// in-window timestamp ages out. Implementations must serialize calls
	// for the same key without blocking calls for different keys.
	Take(key string, now time.Time, window time.Duration, limit int) Decision

	// Status reports the key's window without consuming a slot.
	Status(key string, now time.Time, window time.Duration, limit int) Status

	// Reset forgets all state for key.
	Reset(key string)

	// Sweep drops keys idle since before cutoff and returns how many were
	// removed.
	Sweep(cutoff time.Time) int
}

// Limiter is a sliding-window rate limiter. Safe for concurrent use.
type Limiter struct {
	limit           int
	window          time.Duration
	cleanupInterval time.Duration
	store           Store
	log             zerolog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStore replaces the default in-memory store.
func WithStore(s Store) Option {
	return func(l *Limiter) { l.store = s }
}

// WithCleanupInterval overrides how often idle client state is swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) { l.cleanupInterval = d }
}

// New creates a limiter admitting at most limit requests per client key
// within the trailing window.
func New(limit int, window time.Duration, log zerolog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		limit:           limit,
		window:          window,
		cleanupInterval: 5 * time.Minute,
		log:             log.With().Str("component", "ratelimit").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = newMemoryStore(l.cleanupInterval)
	}
	return l
}

// Allow checks whether a request from clientKey is admitted right now.
func (l *Limiter) Allow(clientKey string) Decision {
	return l.AllowAt(clientKey, time.Now())
}

// AllowAt is Allow with an explicit clock, for deterministic tests.
func (l *Limiter) AllowAt(clientKey string, now time.Time) Decision {
	d := l.store.Take(clientKey, now, l.window, l.limit)
	if !d.Allowed {
		l.log.Warn().
			Str("client", clientKey).
			Dur("retry_after", d.RetryAfter).
			Msg("rate limit exceeded")
	}
	return d
}

// Status reports clientKey's current window without consuming a slot.
func (l *Limiter) Status(clientKey string) Status {
	return l.store.Status(clientKey, time.Now(), l.window, l.limit)
}

// Reset clears all rate-limit state for a client.
func (l *Limiter) Reset(clientKey string) {
	l.store.Reset(clientKey)
	l.log.Info().Str("client", clientKey).Msg("rate limit reset")
}

// Limit returns the configured per-window request limit.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured trailing window.
func (l *Limiter) Window() time.Duration { return l.window }
