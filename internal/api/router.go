package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthCheckTimeout bounds the database ping behind GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
// Every route answers with or without a trailing slash.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.StripSlashes)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Public endpoints
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Post("/token", s.handleToken)
	r.Post("/token/refresh", s.handleTokenRefresh)

	// WebSocket (auth via ticket, validated in handler)
	r.Get("/ws", s.handleWebSocket)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/ws-ticket", s.handleWSTicket)

		r.Route("/hydroponic-systems", func(r chi.Router) {
			r.Get("/", s.handleListSystems)
			r.Post("/", s.handleCreateSystem)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSystem)
				r.Put("/", s.handleReplaceSystem)
				r.Patch("/", s.handlePatchSystem)
				r.Delete("/", s.handleDeleteSystem)
			})
		})

		r.Route("/measurements", func(r chi.Router) {
			r.Get("/", s.handleListMeasurements)
			r.Post("/", s.handleCreateMeasurement)
			r.Get("/last-measurements", s.handleLastMeasurements)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetMeasurement)
				r.Put("/", s.handleReplaceMeasurement)
				r.Patch("/", s.handlePatchMeasurement)
				r.Delete("/", s.handleDeleteMeasurement)
			})
		})

		r.Get("/audit", s.handleListAudit)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow,
			"Method \""+r.Method+"\" not allowed.")
	})

	return r
}

// handleHealth returns the server health status. A failing database ping
// turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check: database unavailable", "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unavailable"
		} else {
			body["database"] = "ok"
		}
	}

	writeJSON(w, status, body)
}
