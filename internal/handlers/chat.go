package handlers

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/locale"
	"saathi-backend/internal/models"
	"saathi-backend/internal/services"
)

const (
	maxSessionIDLen = 128
	maxMessageRunes = 2000
)

// streamer serves the live event socket of one session.
type streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string)
}

type ChatHandler struct {
	registry *chat.Registry
	phrases  *locale.Phrasebook
	hub      streamer
}

func NewChatHandler(registry *chat.Registry, phrases *locale.Phrasebook, hub streamer) *ChatHandler {
	return &ChatHandler{
		registry: registry,
		phrases:  phrases,
		hub:      hub,
	}
}

// OpenSession initializes a session, restoring its log if one is stored.
func (h *ChatHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req models.OpenSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.SessionID != "" && !validSessionID(req.SessionID) {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"session_id": "Session ID is malformed"}, r))
		return
	}

	lang := ""
	if req.Language != "" {
		lang = h.phrases.Normalize(req.Language)
	}

	m, err := h.registry.Open(r.Context(), req.SessionID, lang)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

// SubmitMessage appends the user's message and returns at once; the agent
// reply arrives later over the websocket or a subsequent GetSession.
func (h *ChatHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req models.SubmitMessageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if utf8.RuneCountInString(req.Text) > maxMessageRunes {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"text": "Message is too long"}, r))
		return
	}

	m.Submit(r.Context(), req.Text)
	writeJSON(w, http.StatusAccepted, m.Snapshot())
}

func (h *ChatHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req models.SetLanguageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{"language": "Language is required"}})
		return
	}

	m.SetLanguage(h.phrases.Normalize(req.Language))
	m.Persist(r.Context())
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func (h *ChatHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validSessionID(id) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat session not found", r))
		return
	}
	if err := h.registry.Reset(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) QuickQuestions(w http.ResponseWriter, r *http.Request) {
	lang := h.phrases.Normalize(r.URL.Query().Get("language"))
	writeJSON(w, http.StatusOK, models.QuickQuestionsResponse{
		Language:  lang,
		Questions: h.phrases.QuickQuestions(lang),
	})
}

// Stream upgrades to a websocket carrying the session's live events.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if !validSessionID(id) {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"session_id": "Session ID is required"}, r))
		return
	}
	if _, err := h.registry.Lookup(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.hub.Serve(w, r, id)
}

func (h *ChatHandler) lookup(w http.ResponseWriter, r *http.Request) (*chat.Manager, bool) {
	id := chi.URLParam(r, "id")
	if !validSessionID(id) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat session not found", r))
		return nil, false
	}
	m, err := h.registry.Lookup(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return m, true
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	for _, c := range id {
		if unicode.IsSpace(c) || unicode.IsControl(c) {
			return false
		}
	}
	return true
}
