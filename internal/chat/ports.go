package chat

import (
	"context"

	"github.com/pkg/errors"

	"saathi-backend/internal/models"
)

var (
	// ErrSessionNotFound is returned by the registry for ids it does not hold.
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrCorruptLog marks a persisted log that could not be decoded. Stores
	// wrap decode failures with it so the manager can start over instead of
	// failing the session forever.
	ErrCorruptLog = errors.New("persisted chat log is corrupt")
)

// LogStore persists a session's message log. Load returns a nil slice and no
// error when nothing is stored for the session.
type LogStore interface {
	Load(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	Save(ctx context.Context, sessionID string, messages []models.ChatMessage) error
	Delete(ctx context.Context, sessionID string) error
}

// LanguageStore is implemented by log stores that also remember the session
// language, so a session restored after eviction keeps answering in it. The
// language lives and expires with the log; Delete removes both.
type LanguageStore interface {
	SaveLanguage(ctx context.Context, sessionID, lang string) error
	LoadLanguage(ctx context.Context, sessionID string) (string, error)
}

// Answerer is the remote answer service.
type Answerer interface {
	Ask(ctx context.Context, req models.AnswerRequest) (*models.AnswerResponse, error)
}

// Notifier receives session events for live delivery to the widget.
type Notifier interface {
	Publish(ctx context.Context, sessionID string, msg models.WSMessage)
}

// Phrasebook supplies the language-specific fallback replies.
type Phrasebook interface {
	DefaultResponse(lang string) string
	ErrorMessage(lang string) string
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, string, models.WSMessage) {}
