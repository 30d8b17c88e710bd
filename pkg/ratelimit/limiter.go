package ratelimit

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// LimitExceededError reports a denied admission along with how long the
// caller should wait before the oldest in-window request expires.
type LimitExceededError struct {
	RetryAfter time.Duration
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Stats is a read-only view of one key's rolling window
type Stats struct {
	InWindow  int           `json:"requests_in_window"`
	Remaining int           `json:"requests_remaining"`
	ResetIn   time.Duration `json:"window_reset"`
}

// Limiter is a sliding-window admission counter keyed by session ID.
// Only timestamps inside the trailing window count; older entries are
// evicted lazily before each check, never retroactively inserted.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	history     map[string][]time.Time
	logger      *log.Logger
}

// NewLimiter creates a limiter allowing maxRequests per rolling window
func NewLimiter(maxRequests int, window time.Duration, logger *log.Logger) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		history:     make(map[string][]time.Time),
		logger:      logger,
	}
}

// Admit checks whether a request for key is allowed at time now. When
// allowed, now is recorded against the window. When denied, the returned
// error carries the wait until the oldest in-window request falls out,
// clamped at zero to absorb clock skew. Denial mutates no state.
func (l *Limiter) Admit(key string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	requests := l.evict(key, now)

	if len(requests) < l.maxRequests {
		l.history[key] = append(requests, now)
		return nil
	}

	retryAfter := requests[0].Add(l.window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	l.logger.Printf("[RATELIMIT] Denied key %s: %d requests in window, retry after %s",
		key, len(requests), retryAfter)
	return &LimitExceededError{RetryAfter: retryAfter}
}

// Stats reports the window state for key at time now without recording
// anything. Calling Stats never mutates limiter state.
func (l *Limiter) Stats(key string, now time.Time) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	requests := l.history[key]
	cutoff := now.Add(-l.window)

	inWindow := 0
	var oldest time.Time
	for _, t := range requests {
		if !t.Before(cutoff) {
			if inWindow == 0 {
				oldest = t
			}
			inWindow++
		}
	}

	remaining := l.maxRequests - inWindow
	if remaining < 0 {
		remaining = 0
	}

	var resetIn time.Duration
	if inWindow > 0 {
		resetIn = oldest.Add(l.window).Sub(now)
		if resetIn < 0 {
			resetIn = 0
		}
	}

	return Stats{
		InWindow:  inWindow,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}

// Cleanup drops window state for every key not in activeKeys, keeping
// limiter memory bounded in step with session expiry.
func (l *Limiter) Cleanup(activeKeys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := make(map[string]bool, len(activeKeys))
	for _, k := range activeKeys {
		active[k] = true
	}

	removed := 0
	for key := range l.history {
		if !active[key] {
			delete(l.history, key)
			removed++
		}
	}

	if removed > 0 {
		l.logger.Printf("[RATELIMIT] Cleaned up rate limit data for %d expired sessions", removed)
	}
}

// evict drops timestamps older than the window for key and returns the
// surviving slice. The cutoff comparison is strict: an entry aged
// exactly one window still counts until the next instant. Caller must
// hold the lock.
func (l *Limiter) evict(key string, now time.Time) []time.Time {
	requests := l.history[key]
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(requests) && requests[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		requests = requests[i:]
		l.history[key] = requests
	}
	return requests
}
