package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"ai-regassist-be/pkg/store"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session is unknown or has expired.
// Callers are expected to create a new session.
var ErrNotFound = errors.New("session not found or expired")

// Session holds the conversation memory and counters for one chat session.
// The turn window keeps at most 2*window turns (window exchanges); the
// oldest exchange is evicted first.
type Session struct {
	ID             string       `json:"id"`
	CreatedAt      time.Time    `json:"created_at"`
	LastAccessedAt time.Time    `json:"last_accessed_at"`
	Turns          []store.Turn `json:"turns"`
	MessageCount   int          `json:"message_count"`
}

// Info is the per-session view exposed by Stats
type Info struct {
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	MessageCount   int       `json:"message_count"`
}

// Stats summarizes the active sessions
type Stats struct {
	ActiveSessions int             `json:"active_sessions"`
	Sessions       map[string]Info `json:"sessions"`
}

// Store manages chat sessions and conversation memory in process memory.
// All operations serialize on a single mutex; session counts are expected
// to stay small enough that coarse locking is not a bottleneck.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	window   int // max exchanges kept per session
	logger   *log.Logger
	now      func() time.Time
}

// NewStore creates a session store with the given idle timeout and
// memory window (number of exchanges remembered per session).
func NewStore(timeout time.Duration, window int, logger *log.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a new chat session and returns its ID
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := s.now()
	s.sessions[id] = &Session{
		ID:             id,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	s.logger.Printf("[SESSION] Created new session: %s", id)
	return id
}

// Get returns a snapshot of the session and refreshes its last-accessed
// time. Expired sessions are deleted on access and reported as ErrNotFound;
// this lazy check runs on every access, not only on the periodic sweep.
func (s *Store) Get(sessionID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.access(sessionID)
	if err != nil {
		return Session{}, err
	}
	return snapshot(sess), nil
}

// Delete removes a session. Returns true if it was present.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	s.logger.Printf("[SESSION] Deleted session: %s", sessionID)
	return true
}

// AppendTurn pushes a single turn onto the session window, evicting the
// oldest exchange when the window overflows. Prefer AppendExchange for
// committing a full user/assistant pair atomically.
func (s *Store) AppendTurn(sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.access(sessionID)
	if err != nil {
		return err
	}
	s.push(sess, role, content)
	return nil
}

// AppendExchange commits one completed user/assistant exchange under a
// single lock acquisition. It must be called only after the answer has
// been fully computed: a failed downstream call never half-commits, so
// the window never holds a user turn without its matching assistant turn.
func (s *Store) AppendExchange(sessionID, userContent, assistantContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.access(sessionID)
	if err != nil {
		return err
	}
	s.push(sess, store.RoleUser, userContent)
	s.push(sess, store.RoleAssistant, assistantContent)
	sess.MessageCount++
	return nil
}

// History returns the formatted-ready turn window of a session without
// counting as conversational activity beyond the access touch.
func (s *Store) History(sessionID string) ([]store.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.access(sessionID)
	if err != nil {
		return nil, err
	}
	turns := make([]store.Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	return turns, nil
}

// ActiveIDs returns the IDs of all currently stored sessions
func (s *Store) ActiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Stats reports the active session count and per-session counters.
// It never mutates store state.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		ActiveSessions: len(s.sessions),
		Sessions:       make(map[string]Info, len(s.sessions)),
	}
	for id, sess := range s.sessions {
		stats.Sessions[id] = Info{
			CreatedAt:      sess.CreatedAt,
			LastAccessedAt: sess.LastAccessedAt,
			MessageCount:   sess.MessageCount,
		}
	}
	return stats
}

// Sweep removes every session idle longer than the timeout and returns
// how many were deleted. Intended to run on a periodic background task
// so memory does not grow unbounded between accesses.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, sess := range s.sessions {
		if now.Sub(sess.LastAccessedAt) > s.timeout {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.sessions, id)
	}

	if len(expired) > 0 {
		s.logger.Printf("[SESSION] Cleaned up %d expired sessions", len(expired))
	}
	return len(expired)
}

// access applies the lazy expiry check and touches the session.
// Caller must hold the lock.
func (s *Store) access(sessionID string) (*Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	now := s.now()
	if now.Sub(sess.LastAccessedAt) > s.timeout {
		delete(s.sessions, sessionID)
		s.logger.Printf("[SESSION] Deleted expired session: %s", sessionID)
		return nil, ErrNotFound
	}

	sess.LastAccessedAt = now
	return sess, nil
}

// push appends one turn and enforces the window bound (FIFO on exchanges).
// Caller must hold the lock.
func (s *Store) push(sess *Session, role, content string) {
	sess.Turns = append(sess.Turns, store.Turn{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	if max := s.window * 2; len(sess.Turns) > max {
		sess.Turns = sess.Turns[len(sess.Turns)-max:]
	}
}

func snapshot(sess *Session) Session {
	out := *sess
	out.Turns = make([]store.Turn, len(sess.Turns))
	copy(out.Turns, sess.Turns)
	return out
}
