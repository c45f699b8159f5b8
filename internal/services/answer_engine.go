package services

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/locale"
	"saathi-backend/internal/models"
)

const (
	faqConfidence     = 1.0
	llmConfidence     = 0.8
	defaultConfidence = 0.6
	suggestionCount   = 3
)

// Responder produces a free-form answer, e.g. from an LLM.
type Responder interface {
	Respond(ctx context.Context, question, lang string) (string, error)
}

// AnswerEngine is the server side of the answer service: FAQ table first,
// then the optional responder, then a canned default answer.
type AnswerEngine struct {
	phrases   *locale.Phrasebook
	responder Responder
	pick      func(n int) int
}

var _ chat.Answerer = &AnswerEngine{}

// NewAnswerEngine builds an engine; responder may be nil.
func NewAnswerEngine(phrases *locale.Phrasebook, responder Responder) *AnswerEngine {
	return &AnswerEngine{
		phrases:   phrases,
		responder: responder,
		pick:      rand.IntN,
	}
}

func (e *AnswerEngine) Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, &ValidationError{Fields: map[string]string{"question": "Question is required"}}
	}

	lang := e.phrases.Normalize(req.Language)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if entry, ok := e.phrases.MatchFAQ(lang, question); ok {
		return &models.AnswerResponse{
			Answer:      entry.Answer,
			SessionID:   sessionID,
			Confidence:  faqConfidence,
			Suggestions: entry.Suggestions,
			Predefined:  true,
		}, nil
	}

	suggestions := firstN(e.phrases.QuickQuestions(lang), suggestionCount)

	if e.responder != nil {
		text, err := e.responder.Respond(ctx, question, lang)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("component", "answer_engine").Str("language", lang).Msg("responder failed, using default answer")
		case strings.TrimSpace(text) != "":
			return &models.AnswerResponse{
				Answer:      strings.TrimSpace(text),
				SessionID:   sessionID,
				Confidence:  llmConfidence,
				Suggestions: suggestions,
			}, nil
		}
	}

	answer := e.phrases.DefaultResponse(lang)
	if defaults := e.phrases.DefaultAnswers(lang); len(defaults) > 0 {
		answer = defaults[e.pick(len(defaults))]
	}
	return &models.AnswerResponse{
		Answer:      answer,
		SessionID:   sessionID,
		Confidence:  defaultConfidence,
		Suggestions: suggestions,
	}, nil
}

// Ask lets the engine stand in for the remote service in-process.
func (e *AnswerEngine) Ask(ctx context.Context, req models.AnswerRequest) (*models.AnswerResponse, error) {
	return e.Answer(ctx, req)
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return append([]string(nil), items...)
	}
	return append([]string(nil), items[:n]...)
}
