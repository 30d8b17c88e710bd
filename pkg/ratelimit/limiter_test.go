package ratelimit

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

func newTestLimiter(maxRequests int, window time.Duration) *Limiter {
	return NewLimiter(maxRequests, window, log.New(io.Discard, "", 0))
}

func TestAdmitWithinLimit(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := l.Admit("s1", base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("request %d denied: %v", i+1, err)
		}
	}
}

func TestSixthRequestDenied(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := l.Admit("s1", base); err != nil {
			t.Fatal(err)
		}
	}

	err := l.Admit("s1", base.Add(10*time.Second))
	var limitErr *LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want LimitExceededError", err)
	}
	// Oldest request at base, window 60s, now base+10s: wait 50s
	if limitErr.RetryAfter != 50*time.Second {
		t.Errorf("RetryAfter = %v, want 50s", limitErr.RetryAfter)
	}
}

func TestWindowSlides(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := l.Admit("s1", base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}

	// 61 seconds after the first request it has left the window
	if err := l.Admit("s1", base.Add(61*time.Second)); err != nil {
		t.Errorf("request after window slide denied: %v", err)
	}
}

func TestDenialDoesNotConsume(t *testing.T) {
	l := newTestLimiter(2, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l.Admit("s1", base)
	l.Admit("s1", base.Add(time.Second))

	// Repeated denials at the same instant must report the same wait:
	// a denied request records nothing.
	for i := 0; i < 3; i++ {
		err := l.Admit("s1", base.Add(30*time.Second))
		var limitErr *LimitExceededError
		if !errors.As(err, &limitErr) {
			t.Fatalf("attempt %d: err = %v, want LimitExceededError", i+1, err)
		}
		if limitErr.RetryAfter != 30*time.Second {
			t.Errorf("attempt %d: RetryAfter = %v, want 30s", i+1, limitErr.RetryAfter)
		}
	}
}

func TestRetryAfterClampedAtZero(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l.Admit("s1", base)

	// Exactly at the window boundary the entry is not yet evicted
	// (cutoff comparison is strict) but the wait must not go negative.
	err := l.Admit("s1", base.Add(time.Minute))
	var limitErr *LimitExceededError
	if errors.As(err, &limitErr) && limitErr.RetryAfter < 0 {
		t.Errorf("RetryAfter = %v, want >= 0", limitErr.RetryAfter)
	}
}

func TestEntryAgedExactlyWindowStillCounts(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l.Admit("s1", base)

	// At base+60s the entry sits exactly on the cutoff and survives
	// eviction; one nanosecond later it is gone.
	err := l.Admit("s1", base.Add(time.Minute))
	var limitErr *LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want LimitExceededError at the boundary instant", err)
	}
	if limitErr.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0 at the boundary instant", limitErr.RetryAfter)
	}

	if err := l.Admit("s1", base.Add(time.Minute+time.Nanosecond)); err != nil {
		t.Errorf("request just past the window denied: %v", err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := l.Admit("s1", base); err != nil {
		t.Fatal(err)
	}
	if err := l.Admit("s2", base); err != nil {
		t.Errorf("second key denied: %v", err)
	}
}

func TestStatsIsReadOnly(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l.Admit("s1", base)
	l.Admit("s1", base.Add(time.Second))

	stats := l.Stats("s1", base.Add(2*time.Second))
	if stats.InWindow != 2 {
		t.Errorf("InWindow = %d, want 2", stats.InWindow)
	}
	if stats.Remaining != 3 {
		t.Errorf("Remaining = %d, want 3", stats.Remaining)
	}
	if stats.ResetIn != 58*time.Second {
		t.Errorf("ResetIn = %v, want 58s", stats.ResetIn)
	}

	// Stats must not have recorded anything
	again := l.Stats("s1", base.Add(2*time.Second))
	if again.InWindow != 2 {
		t.Errorf("InWindow after Stats = %d, want 2", again.InWindow)
	}
}

func TestCleanupDropsInactiveKeys(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l.Admit("active", base)
	l.Admit("stale", base)

	l.Cleanup([]string{"active"})

	if stats := l.Stats("stale", base); stats.InWindow != 0 {
		t.Errorf("stale key InWindow = %d, want 0 after cleanup", stats.InWindow)
	}
	if stats := l.Stats("active", base); stats.InWindow != 1 {
		t.Errorf("active key InWindow = %d, want 1 after cleanup", stats.InWindow)
	}
}
