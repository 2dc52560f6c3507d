package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)
	r.Get("/status", s.getStatus)

	// Lifecycle triggers
	r.Route("/server", func(r chi.Router) {
		r.Post("/start", s.startServer)
		r.Post("/stop", s.stopServer)
		r.Post("/restart", s.restartServer)
	})

	// Diagnostics
	r.Get("/logs", s.getLogs)

	// Event streaming (SSE)
	r.Get("/events", s.streamEvents)

	// Dependent features
	r.Post("/visualize", s.visualizeFile)
	r.Post("/format", s.formatFile)

	// Recovery prompts
	r.Route("/prompts", func(r chi.Router) {
		r.Get("/", s.listPrompts)
		r.Post("/{promptID}", s.resolvePrompt)
	})
}
