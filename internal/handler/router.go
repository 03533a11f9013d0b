package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/support-console/internal/middleware"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

// RouterConfig carries the HTTP-level settings.
type RouterConfig struct {
	JWTSecret         string
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Heartbeat         time.Duration
}

// NewRouter wires every console endpoint.
func NewRouter(cfg RouterConfig, console Console, assistant Assistant, live LiveChannel, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(live)
	conversationHandler := NewConversationHandler(console, assistant.Board(), log)
	suggestionHandler := NewSuggestionHandler(assistant)
	streamHandler := NewStreamHandler(console.Store(), assistant.Board(), cfg.Heartbeat, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(middleware.ScopeRead))

			r.Get("/conversations", conversationHandler.List)
			r.Get("/conversations/{id}", conversationHandler.Get)
			r.Get("/conversations/{id}/suggestions", suggestionHandler.Get)
			r.Get("/active", conversationHandler.Active)
			r.Get("/stream", streamHandler.Stream)
			r.Post("/classify", suggestionHandler.Classify)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(middleware.ScopeWrite))

			r.Post("/conversations/refresh", conversationHandler.Refresh)
			r.Post("/conversations/{id}/select", conversationHandler.Select)
			r.Delete("/active", conversationHandler.Deselect)
			r.Post("/conversations/{id}/take", conversationHandler.Take)
			r.Post("/conversations/{id}/close", conversationHandler.Close)
			r.Post("/conversations/{id}/messages", conversationHandler.Send)
			r.Post("/conversations/{id}/messages/{messageId}/resend", conversationHandler.Resend)
		})
	})

	return r
}
