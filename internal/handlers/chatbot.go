package handlers

import (
	"context"
	"net/http"

	"saathi-backend/internal/models"
)

type answerService interface {
	Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResponse, error)
}

// ChatbotHandler serves the answer service endpoint the chat sessions call.
type ChatbotHandler struct {
	engine answerService
}

func NewChatbotHandler(engine answerService) *ChatbotHandler {
	return &ChatbotHandler{engine: engine}
}

func (h *ChatbotHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := h.engine.Answer(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
