package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Service calls, mirroring the runtime service registrations
			r.Route("/services", func(r chi.Router) {
				r.Post("/update", s.handleCapture)
				r.Post("/scene_update", s.handleCapture)
				r.Post("/scene_get", s.handleSceneGet)
			})

			// Capture history
			r.Get("/captures", s.handleListCaptures)

			// Scene record inspection by document id
			r.Get("/scenes/{scene_id}/entities", s.handleSceneEntities)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.runtime != nil {
		body["homeassistant_connected"] = s.runtime.IsConnected()
		if !s.runtime.IsConnected() {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}
