package models

// WebSocket message types
const (
	EventMessageAppended = "message_appended"
	EventPendingChanged  = "pending_changed"
	EventSessionReset    = "session_reset"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type MessageAppended struct {
	SessionID string      `json:"session_id"`
	Message   ChatMessage `json:"message"`
}

type PendingChanged struct {
	SessionID string `json:"session_id"`
	Pending   bool   `json:"pending"`
}

type SessionReset struct {
	SessionID string `json:"session_id"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
