package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)
	r.Use(limitBody)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Token issue (no auth required; authenticated by the API secret)
		r.Post("/auth/token", s.handleToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			// WS ticket requires a valid token, so callers authenticate
			// before opening the event stream
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Context introspection
			r.Get("/context/describe", s.handleDescribeContext)
			r.Get("/providers", s.handleListProviders)

			// I/O instance endpoints
			r.Route("/io", func(r chi.Router) {
				r.Get("/", s.handleListIO)
				r.Post("/", s.handleCreateIO)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetIO)
					r.Delete("/", s.handleDestroyIO)
					r.Get("/describe", s.handleDescribeIO)
					r.Get("/state", s.handleGetIOState)
					r.Put("/state", s.handleSetIOState)
					r.Post("/pulse", s.handlePulseIO)
					r.Post("/blink", s.handleBlinkIO)
					r.Get("/history", s.handleIOHistory)
				})
			})

			// Async operation endpoints
			r.Route("/operations", func(r chi.Router) {
				r.Get("/{id}", s.handleGetOperation)
				r.Delete("/{id}", s.handleCancelOperation)
			})

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"instances": s.runtime.Registry().Count(),
	})
}

// handleDescribeContext returns the full runtime describe tree: providers,
// platforms, and every registered instance.
func (s *Server) handleDescribeContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runtime.Describe())
}

// handleListProviders returns the sealed provider store contents.
func (s *Server) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	providers := s.runtime.Providers().Providers()

	views := make([]map[string]any, 0, len(providers))
	for _, p := range providers {
		types := p.Types()
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = t.String()
		}
		views = append(views, map[string]any{
			"id":    p.ID(),
			"name":  p.Name(),
			"types": names,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"providers": views,
		"count":     len(views),
	})
}
