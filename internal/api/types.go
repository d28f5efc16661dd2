package api

// ChatRequest is the body of POST /chat. A nil SessionID is sent as JSON null.
type ChatRequest struct {
	Prompt    string  `json:"prompt"`
	SessionID *string `json:"session_id"`
}

// ChatResponse is the decoded /chat body. Field names vary across backend versions, so it is
// kept as a generic object and normalized by the caller.
type ChatResponse map[string]any

// HistoryResponse is the body of GET /history/{session_id}.
type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	History   []HistoryRecord  `json:"history"`
	AuditLogs []map[string]any `json:"audit_logs,omitempty"`
}

// HistoryRecord is one stored chat turn. ID is whatever the backend stored under _id.
type HistoryRecord struct {
	ID           any            `json:"_id,omitempty"`
	Role         string         `json:"role"`
	Content      string         `json:"content"`
	Timestamp    string         `json:"timestamp"`
	AgentOutputs map[string]any `json:"agent_outputs,omitempty"`
}
