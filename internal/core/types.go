package core

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a transcript may hold.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session is a locally tracked conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a single transcript entry. Messages are never mutated after creation.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Agents    []string       `json:"agents,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsError   bool           `json:"isError,omitempty"`
}

// Metadata keys set on assistant messages.
const (
	MetaConfidence     = "confidence"
	MetaReviewStatus   = "review_status"
	MetaUsedAgents     = "used_agents"
	MetaTrialsAnalyzed = "trials_analyzed"
)
