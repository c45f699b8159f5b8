package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sender tags who wrote a chat message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAgent
}

func (s *Sender) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Sender(raw)
	// Logs written by the browser widget used "bot" for agent replies.
	if raw == "bot" {
		v = SenderAgent
	}
	if !v.Valid() {
		return fmt.Errorf("unknown message sender %q", raw)
	}
	*s = v
	return nil
}

// ChatMessage is one entry of a session's message log.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage validates the sender and text before building a message.
func NewChatMessage(id int64, text string, sender Sender, ts time.Time) (ChatMessage, error) {
	if !sender.Valid() {
		return ChatMessage{}, fmt.Errorf("unknown message sender %q", sender)
	}
	if strings.TrimSpace(text) == "" {
		return ChatMessage{}, fmt.Errorf("message text is empty")
	}
	return ChatMessage{ID: id, Text: text, Sender: sender, Timestamp: ts}, nil
}

// SessionSnapshot is the read model of a chat session returned to the widget.
type SessionSnapshot struct {
	SessionID   string        `json:"session_id"`
	Language    string        `json:"language"`
	Messages    []ChatMessage `json:"messages"`
	Pending     bool          `json:"pending"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// AnswerRequest is the payload sent to the answer service.
type AnswerRequest struct {
	Question  string `json:"question"`
	Language  string `json:"language"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// AnswerResponse is what the answer service returns. Only Answer is required
// by the widget; the rest is best-effort.
type AnswerResponse struct {
	Answer      string   `json:"answer,omitempty"`
	SessionID   string   `json:"session_id,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Predefined  bool     `json:"predefined,omitempty"`
}

// Session HTTP payloads.
type OpenSessionRequest struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

type SubmitMessageRequest struct {
	Text string `json:"text"`
}

type SetLanguageRequest struct {
	Language string `json:"language"`
}

type QuickQuestionsResponse struct {
	Language  string   `json:"language"`
	Questions []string `json:"questions"`
}
