package dto

import "time"

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
}

// SendTurnRequest carries one user turn. An empty SessionId starts a
// fresh session; Mode overrides the search strategy the router picked.
type SendTurnRequest struct {
	SessionId string `json:"session_id" validate:"omitempty,uuid4"`
	Message   string `json:"message" validate:"required,min=1,max=4000"`
	Mode      string `json:"mode" validate:"omitempty,oneof=single generated"`
}

// DocumentMatchDTO describes a located document in a turn reply
type DocumentMatchDTO struct {
	Name       string  `json:"document_name"`
	Path       string  `json:"file_path"`
	SizeMB     float64 `json:"file_size_mb"`
	MatchScore float64 `json:"match_score"`
	MatchType  string  `json:"match_type"`
}

type SendTurnResponse struct {
	SessionId    string             `json:"session_id"`
	Answer       string             `json:"answer"`
	Decision     string             `json:"decision"`
	QueriesUsed  []string           `json:"queries_used,omitempty"`
	Document     *DocumentMatchDTO  `json:"document,omitempty"`
	MessageCount int                `json:"message_count"`
	RateLimit    *RateLimitStatsDTO `json:"rate_limit,omitempty"`
	DurationMs   int64              `json:"duration_ms"`
}

// RateLimitStatsDTO is a snapshot of the caller's admission window
type RateLimitStatsDTO struct {
	RequestsInWindow  int     `json:"requests_in_window"`
	RequestsRemaining int     `json:"requests_remaining"`
	WindowResetSec    float64 `json:"window_reset_seconds"`
}

type SessionHistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionStatsResponse struct {
	ActiveSessions int                           `json:"active_sessions"`
	Sessions       map[string]SessionStatsDetail `json:"sessions"`
}

type SessionStatsDetail struct {
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	MessageCount   int       `json:"message_count"`
}

// RateLimitedError carries retry timing for denied turns
type RateLimitedError struct {
	RetryAfterSeconds float64 `json:"retry_after_seconds"`
}

func (e *RateLimitedError) Error() string {
	return "rate limit exceeded"
}

// AnalyticsEventMessage is the envelope shipped over the internal event bus
type AnalyticsEventMessage struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}
