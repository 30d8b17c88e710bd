package store

import "time"

// Document represents a retrieved chunk of regulatory content
type Document struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// ScoredDocument is a document with its cumulative fusion score.
// Two ScoredDocuments with the same Fingerprint are the same entry.
type ScoredDocument struct {
	Document
	Score       float64 `json:"score"`
	Fingerprint string  `json:"fingerprint"`
}

// Turn roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in a conversation. Immutable once appended;
// owned exclusively by its session.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
