package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"saathi-backend/internal/handlers"
	"saathi-backend/internal/middleware"
)

func New(
	chatHandler *handlers.ChatHandler,
	chatbotHandler *handlers.ChatbotHandler,
	submitLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ──── Answer service ────
	r.With(chimiddleware.Timeout(30*time.Second)).Post("/api/chatbot", chatbotHandler.Answer)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Chat Routes ────
		r.Route("/chat", func(r chi.Router) {
			r.Get("/quick-questions", chatHandler.QuickQuestions)
			r.Post("/sessions", chatHandler.OpenSession)

			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", chatHandler.GetSession)
				r.With(submitLimiter.Middleware).Post("/messages", chatHandler.SubmitMessage)
				r.Put("/language", chatHandler.SetLanguage)
				r.Delete("/", chatHandler.ResetSession)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", chatHandler.Stream)
	})

	return r
}

// SessionKey keys the submit limiter by chat session, so one noisy tab cannot
// starve others behind the same NAT.
func SessionKey(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return "session:" + id
	}
	return r.RemoteAddr
}
