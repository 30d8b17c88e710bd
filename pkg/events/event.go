package events

import "time"

// Analytics event codes
const (
	TypeTurnAnswered   = "TURN_ANSWERED"
	TypeTurnErrored    = "TURN_ERRORED"
	TypeRateLimited    = "RATE_LIMITED"
	TypeSessionExpired = "SESSION_EXPIRED"
)

// Event defines the contract for all analytics events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TURN_ANSWERED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic Event implementation used by the
// constructors below and by the bus when reconstructing events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewTurnAnswered records a completed chat turn and how it was routed
func NewTurnAnswered(sessionID, decision string, durationMs int64) Event {
	return BaseEvent{
		Type: TypeTurnAnswered,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"decision":    decision,
			"duration_ms": durationMs,
		},
		OccurredAt: time.Now(),
	}
}

// NewTurnErrored records a chat turn that ended in an error
func NewTurnErrored(sessionID, reason string) Event {
	return BaseEvent{
		Type: TypeTurnErrored,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}

// NewRateLimited records a denied admission
func NewRateLimited(sessionID string, retryAfterSeconds float64) Event {
	return BaseEvent{
		Type: TypeRateLimited,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"retry_after": retryAfterSeconds,
		},
		OccurredAt: time.Now(),
	}
}

// NewSessionExpired records a background sweep that removed sessions
func NewSessionExpired(count int) Event {
	return BaseEvent{
		Type: TypeSessionExpired,
		Data: map[string]interface{}{
			"expired_count": count,
		},
		OccurredAt: time.Now(),
	}
}
