package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saathi-backend/internal/locale"
	"saathi-backend/internal/models"
)

type stubResponder struct {
	text  string
	err   error
	calls int
}

func (s *stubResponder) Respond(ctx context.Context, question, lang string) (string, error) {
	s.calls++
	return s.text, s.err
}

func newTestEngine(t *testing.T, r Responder) *AnswerEngine {
	t.Helper()
	phrases, err := locale.Default()
	require.NoError(t, err)
	e := NewAnswerEngine(phrases, r)
	e.pick = func(int) int { return 0 }
	return e
}

func TestAnswerEngine_FAQMatch(t *testing.T) {
	llm := &stubResponder{text: "should not be used"}
	e := newTestEngine(t, llm)

	resp, err := e.Answer(context.Background(), models.AnswerRequest{
		Question:  "How do I register?",
		Language:  "en",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Predefined)
	assert.Equal(t, 1.0, resp.Confidence)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Contains(t, resp.Answer, "Register")
	assert.Contains(t, resp.Suggestions, "What documents do I need?")
	assert.Zero(t, llm.calls)
}

func TestAnswerEngine_ResponderAnswer(t *testing.T) {
	e := newTestEngine(t, &stubResponder{text: "  Visit the nearest clinic.  "})

	resp, err := e.Answer(context.Background(), models.AnswerRequest{Question: "Where can I get a flu shot?", Language: "en-IN"})
	require.NoError(t, err)
	assert.False(t, resp.Predefined)
	assert.Equal(t, "Visit the nearest clinic.", resp.Answer)
	assert.Equal(t, 0.8, resp.Confidence)
	assert.Len(t, resp.Suggestions, 3)
	assert.NotEmpty(t, resp.SessionID)
}

func TestAnswerEngine_DefaultAnswerWhenResponderFails(t *testing.T) {
	phrases, err := locale.Default()
	require.NoError(t, err)
	e := newTestEngine(t, &stubResponder{err: errors.New("quota exceeded")})

	resp, err := e.Answer(context.Background(), models.AnswerRequest{Question: "Where can I get a flu shot?", Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, phrases.DefaultAnswers("hi")[0], resp.Answer)
	assert.Equal(t, 0.6, resp.Confidence)
	assert.Equal(t, phrases.QuickQuestions("hi")[:3], resp.Suggestions)
}

func TestAnswerEngine_NoResponderUnsupportedLanguage(t *testing.T) {
	phrases, err := locale.Default()
	require.NoError(t, err)
	e := newTestEngine(t, nil)

	resp, err := e.Ask(context.Background(), models.AnswerRequest{Question: "Bonjour, quelle heure?", Language: "fr"})
	require.NoError(t, err)
	assert.Equal(t, phrases.DefaultAnswers("en")[0], resp.Answer)
}

func TestAnswerEngine_BlankQuestion(t *testing.T) {
	e := newTestEngine(t, nil)

	_, err := e.Answer(context.Background(), models.AnswerRequest{Question: "   "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "question")
}

func TestBuildAnswerPrompt(t *testing.T) {
	assert.Equal(t, "Reply in Malayalam.\n\nQuestion: where?", buildAnswerPrompt(" where? ", "ml"))
	assert.Equal(t, "Reply in English.\n\nQuestion: where?", buildAnswerPrompt("where?", "xx"))
}
