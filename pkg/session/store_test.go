package session

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

func newTestStore(timeout time.Duration, window int) (*Store, *time.Time) {
	s := NewStore(timeout, window, log.New(io.Discard, "", 0))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(30*time.Minute, 10)

	id := s.Create()
	if id == "" {
		t.Fatal("Create returned empty ID")
	}

	sess, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.ID != id {
		t.Errorf("ID = %q, want %q", sess.ID, id)
	}
	if sess.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", sess.MessageCount)
	}
}

func TestGetUnknownSession(t *testing.T) {
	s, _ := newTestStore(30*time.Minute, 10)

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLazyExpiryOnAccess(t *testing.T) {
	s, now := newTestStore(30*time.Minute, 10)

	id := s.Create()
	*now = now.Add(31 * time.Minute)

	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for expired session", err)
	}
	// The expired session must be gone, not just hidden
	if got := len(s.ActiveIDs()); got != 0 {
		t.Errorf("ActiveIDs after expiry = %d, want 0", got)
	}
}

func TestAccessRefreshesExpiry(t *testing.T) {
	s, now := newTestStore(30*time.Minute, 10)

	id := s.Create()

	// Touch every 20 minutes; session must survive well past the
	// original deadline because each access refreshes it.
	for i := 0; i < 4; i++ {
		*now = now.Add(20 * time.Minute)
		if _, err := s.Get(id); err != nil {
			t.Fatalf("Get after %d touches failed: %v", i+1, err)
		}
	}
}

func TestAppendExchangeCountsAndStores(t *testing.T) {
	s, _ := newTestStore(30*time.Minute, 10)

	id := s.Create()
	for i := 0; i < 3; i++ {
		if err := s.AppendExchange(id, "question", "answer"); err != nil {
			t.Fatalf("AppendExchange failed: %v", err)
		}
	}

	sess, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", sess.MessageCount)
	}
	if len(sess.Turns) != 6 {
		t.Errorf("Turns = %d, want 6 (3 exchanges)", len(sess.Turns))
	}
}

func TestWindowEvictsOldestExchange(t *testing.T) {
	s, _ := newTestStore(30*time.Minute, 10)

	id := s.Create()
	for i := 0; i < 13; i++ {
		content := string(rune('a' + i))
		if err := s.AppendExchange(id, content, "reply-"+content); err != nil {
			t.Fatalf("AppendExchange failed: %v", err)
		}
	}

	turns, err := s.History(id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 20 {
		t.Fatalf("History length = %d, want 20 (10 exchanges)", len(turns))
	}
	// The first 3 exchanges must have been evicted
	if turns[0].Content != "d" {
		t.Errorf("oldest surviving turn = %q, want %q", turns[0].Content, "d")
	}
	if turns[19].Content != "reply-m" {
		t.Errorf("newest turn = %q, want %q", turns[19].Content, "reply-m")
	}

	sess, _ := s.Get(id)
	if sess.MessageCount != 13 {
		t.Errorf("MessageCount = %d, want 13 (counter survives eviction)", sess.MessageCount)
	}
}

func TestAppendToExpiredSession(t *testing.T) {
	s, now := newTestStore(30*time.Minute, 10)

	id := s.Create()
	*now = now.Add(time.Hour)

	if err := s.AppendExchange(id, "hi", "hello"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(30*time.Minute, 10)

	id := s.Create()
	if !s.Delete(id) {
		t.Error("Delete returned false for existing session")
	}
	if s.Delete(id) {
		t.Error("Delete returned true for removed session")
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	s, now := newTestStore(30*time.Minute, 10)

	old := s.Create()
	*now = now.Add(20 * time.Minute)
	fresh := s.Create()

	removed := s.Sweep(now.Add(15 * time.Minute))
	if removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, err := s.Get(fresh); err != nil {
		t.Errorf("fresh session should survive sweep: %v", err)
	}
	if _, err := s.Get(old); !errors.Is(err, ErrNotFound) {
		t.Errorf("old session should be swept, got err = %v", err)
	}
}

func TestStatsDoesNotTouchSessions(t *testing.T) {
	s, now := newTestStore(30*time.Minute, 10)

	id := s.Create()
	createdAt := *now

	*now = now.Add(10 * time.Minute)
	stats := s.Stats()

	if stats.ActiveSessions != 1 {
		t.Fatalf("ActiveSessions = %d, want 1", stats.ActiveSessions)
	}
	info := stats.Sessions[id]
	if !info.LastAccessedAt.Equal(createdAt) {
		t.Errorf("Stats touched the session: LastAccessedAt = %v, want %v", info.LastAccessedAt, createdAt)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s, _ := newTestStore(30*time.Minute, 10)

	id := s.Create()
	if err := s.AppendExchange(id, "q", "a"); err != nil {
		t.Fatal(err)
	}

	sess, _ := s.Get(id)
	sess.Turns[0].Content = "mutated"

	fresh, _ := s.Get(id)
	if fresh.Turns[0].Content != "q" {
		t.Error("Get returned a live reference instead of a snapshot")
	}
}
