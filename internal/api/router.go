// Package api wires the orchestrator's HTTP surface: the A2A boundary
// entrypoint, a manual registry-refresh trigger, and a health probe.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/meshwork/orchestrator/internal/api/middleware"
	"github.com/meshwork/orchestrator/internal/config"
)

// Deps collects the handlers NewRouter mounts.
type Deps struct {
	A2A     *A2AHandler
	Refresh *RefreshHandler
}

// NewRouter builds the chi router described in §10: POST /a2a/message,
// POST /internal/registry/refresh, GET /healthz, wrapped in the same
// request-id/recover/logger/telemetry middleware stack the reference
// codebase's router uses.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthHandler(cfg))

	r.Post("/a2a/message", deps.A2A.HandleMessage)

	r.Route("/internal/registry", func(r chi.Router) {
		r.Post("/refresh", deps.Refresh.HandleRefresh)
	})

	return r
}

func healthHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "orchestrator",
			"version": cfg.Version,
		})
	}
}
