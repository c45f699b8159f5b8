package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/locale"
	"saathi-backend/internal/models"
	"saathi-backend/internal/repository"
	"saathi-backend/internal/services"
)

type immediateScheduler struct{}

func (immediateScheduler) AfterFunc(d time.Duration, f func()) { f() }

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(job func()) { job() }

type fakeStreamer struct{ served []string }

func (f *fakeStreamer) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	f.served = append(f.served, sessionID)
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type testEnv struct {
	router   http.Handler
	store    *repository.MemoryLogStore
	phrases  *locale.Phrasebook
	streamer *fakeStreamer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	phrases, err := locale.Default()
	require.NoError(t, err)

	store := repository.NewMemoryLogStore(0)
	engine := services.NewAnswerEngine(phrases, nil)
	registry := chat.NewRegistry(chat.Options{
		Store:      store,
		Answerer:   engine,
		Phrases:    phrases,
		Scheduler:  immediateScheduler{},
		Dispatcher: inlineDispatcher{},
	}, phrases.Welcome)

	env := &testEnv{store: store, phrases: phrases, streamer: &fakeStreamer{}}
	h := NewChatHandler(registry, phrases, env.streamer)
	bot := NewChatbotHandler(engine)

	r := chi.NewRouter()
	r.Post("/api/chatbot", bot.Answer)
	r.Get("/api/v1/ws", h.Stream)
	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Get("/quick-questions", h.QuickQuestions)
		r.Post("/sessions", h.OpenSession)
		r.Get("/sessions/{id}", h.GetSession)
		r.Post("/sessions/{id}/messages", h.SubmitMessage)
		r.Put("/sessions/{id}/language", h.SetLanguage)
		r.Delete("/sessions/{id}", h.ResetSession)
	})
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) models.SessionSnapshot {
	t.Helper()
	var snap models.SessionSnapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	return snap
}

func TestOpenSession_SeedsWelcome(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/chat/sessions", models.OpenSessionRequest{Language: "hi-IN"})
	require.Equal(t, http.StatusOK, rr.Code)

	snap := decodeSnapshot(t, rr)
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, "hi", snap.Language)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, models.SenderAgent, snap.Messages[0].Sender)
	assert.Equal(t, env.phrases.Welcome("hi"), snap.Messages[0].Text)
	assert.False(t, snap.Pending)
}

func TestOpenSession_EmptyBodyAndBadID(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/chat/sessions", models.OpenSessionRequest{SessionID: "has space"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmitMessage_FAQRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/chat/sessions", models.OpenSessionRequest{SessionID: "s1"}).Code)

	rr := env.do(t, http.MethodPost, "/api/v1/chat/sessions/s1/messages", models.SubmitMessageRequest{Text: "  What documents do I need?  "})
	require.Equal(t, http.StatusAccepted, rr.Code)

	snap := decodeSnapshot(t, rr)
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, models.SenderUser, snap.Messages[1].Sender)
	assert.Equal(t, "What documents do I need?", snap.Messages[1].Text)
	assert.Equal(t, models.SenderAgent, snap.Messages[2].Sender)
	assert.Contains(t, snap.Messages[2].Text, "Aadhaar")
	assert.Contains(t, snap.Suggestions, "Document upload process")
	assert.False(t, snap.Pending)

	stored, err := env.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, snap.Messages, stored)
}

func TestSubmitMessage_BlankAndTooLong(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/chat/sessions", models.OpenSessionRequest{SessionID: "s1"})

	rr := env.do(t, http.MethodPost, "/api/v1/chat/sessions/s1/messages", models.SubmitMessageRequest{Text: "   "})
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Len(t, decodeSnapshot(t, rr).Messages, 1)

	rr = env.do(t, http.MethodPost, "/api/v1/chat/sessions/s1/messages", models.SubmitMessageRequest{Text: strings.Repeat("a", maxMessageRunes+1)})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/chat/sessions/missing", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/chat/sessions/missing/messages", models.SubmitMessageRequest{Text: "hi"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetLanguage(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/chat/sessions", models.OpenSessionRequest{SessionID: "s1"})

	rr := env.do(t, http.MethodPut, "/api/v1/chat/sessions/s1/language", models.SetLanguageRequest{Language: "ML"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ml", decodeSnapshot(t, rr).Language)

	lang, err := env.store.LoadLanguage(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "ml", lang)

	rr = env.do(t, http.MethodPut, "/api/v1/chat/sessions/s1/language", models.SetLanguageRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResetSession(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/chat/sessions", models.OpenSessionRequest{SessionID: "s1"})
	env.do(t, http.MethodPost, "/api/v1/chat/sessions/s1/messages", models.SubmitMessageRequest{Text: "hello"})

	rr := env.do(t, http.MethodDelete, "/api/v1/chat/sessions/s1", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, env.store.Len())
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/chat/sessions/s1", nil).Code)

	// Re-opening after a reset starts over with the welcome message.
	rr = env.do(t, http.MethodPost, "/api/v1/chat/sessions", models.OpenSessionRequest{SessionID: "s1"})
	assert.Len(t, decodeSnapshot(t, rr).Messages, 1)
}

func TestQuickQuestions(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/chat/quick-questions?language=fr", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body models.QuickQuestionsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "en", body.Language)
	assert.Equal(t, env.phrases.QuickQuestions("en"), body.Questions)
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/ws", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/ws?session_id=nope", nil).Code)

	env.do(t, http.MethodPost, "/api/v1/chat/sessions", models.OpenSessionRequest{SessionID: "s1"})
	env.do(t, http.MethodGet, "/api/v1/ws?session_id=s1", nil)
	assert.Equal(t, []string{"s1"}, env.streamer.served)
}

func TestChatbotAnswer(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/chatbot", models.AnswerRequest{Question: "How do I register?", Language: "en", SessionID: "abc"})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp models.AnswerResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Predefined)
	assert.Equal(t, "abc", resp.SessionID)

	rr = env.do(t, http.MethodPost, "/api/chatbot", models.AnswerRequest{Question: " "})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Fields, "question")

	req := httptest.NewRequest(http.MethodPost, "/api/chatbot", strings.NewReader("{not json"))
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
