package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/me-in-moments/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	runsHandler := handlers.NewRunsHandler(s.config, s.jobManager, s.source)
	configHandler := handlers.NewConfigHandler(s.config, s.cache)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		// Runs (long-running matching jobs)
		r.Get("/runs", runsHandler.List)
		r.Post("/runs", runsHandler.Start)
		r.Get("/runs/{jobId}", runsHandler.Status)
		r.Get("/runs/{jobId}/events", runsHandler.Events)
		r.Get("/runs/{jobId}/matches", runsHandler.Matches)
		r.Get("/runs/{jobId}/archive", runsHandler.Archive)
		r.Delete("/runs/{jobId}", runsHandler.Delete)
	})
}
