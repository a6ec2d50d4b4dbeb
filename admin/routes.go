package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the admin router. metrics may be nil when Prometheus is disabled.
func NewRouter(handlers *AdminHandlers, secret string, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handlers.handleHealth)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(secret))

		r.Post("/sql", handlers.handleSQL)
		r.Get("/sessions", handlers.handleSessions)

		r.Get("/statements", handlers.handleStatements)
		r.Delete("/statements", handlers.handleResetStatements)
	})

	if secret == "" {
		log.Warn().Msg("Admin API secret is empty, endpoints are unauthenticated")
	}

	return gzhttp.GzipHandler(r)
}
