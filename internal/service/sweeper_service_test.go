package service

import (
	"io"
	"log"
	"testing"
	"time"

	"ai-regassist-be/pkg/events"
	"ai-regassist-be/pkg/ratelimit"
	"ai-regassist-be/pkg/session"

	"github.com/stretchr/testify/assert"
)

func TestSweepOnceRemovesExpiredSessions(t *testing.T) {
	stdLogger := log.New(io.Discard, "", 0)
	sessions := session.NewStore(30*time.Minute, 10, stdLogger)
	limiter := ratelimit.NewLimiter(5, time.Minute, stdLogger)
	publisher := &capturingPublisher{}

	sweeper := NewSweeperService(sessions, limiter, publisher, 5*time.Minute, nopLogger{})

	id := sessions.Create()
	limiter.Admit(id, time.Now())

	// Nothing has expired yet
	assert.Equal(t, 0, sweeper.SweepOnce(time.Now()))
	assert.Empty(t, publisher.messages)

	// An hour later the session is past its 30 minute timeout
	removed := sweeper.SweepOnce(time.Now().Add(time.Hour))
	assert.Equal(t, 1, removed)
	assert.Empty(t, sessions.ActiveIDs())

	// Limiter state for the removed session is dropped too
	stats := limiter.Stats(id, time.Now())
	assert.Equal(t, 0, stats.InWindow)

	assert.Len(t, publisher.messages, 1)
	assert.Equal(t, events.TypeSessionExpired, publisher.messages[0].Type)
}
