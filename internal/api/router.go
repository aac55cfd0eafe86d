package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	CORSOrigins []string
}

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(l Ledger, a Authenticator, logger *slog.Logger, cfg RouterConfig) http.Handler {
	h := NewHandler(l, a, logger)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": statusSuccess})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Post("/transactions", h.ApplyHandler)
		r.Get("/users/{userId}/balance", h.BalanceHandler)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/transactions", h.ListHandler)
			r.Post("/transactions/query", h.QueryHandler)
			r.Post("/transactions/bulk-revert", h.BulkRevertHandler)
			r.Get("/transactions/{id}", h.GetHandler)
			r.Delete("/transactions/{id}", h.ReverseHandler)

			r.Post("/tokens/bot", h.IssueBotTokenHandler)
			r.Post("/tokens/admin", h.IssueAdminTokenHandler)
		})
	})

	return r
}
