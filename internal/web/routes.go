package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/photo-finder/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	scanHandler := handlers.NewScanHandler(s.config, s.jobManager, s.backend)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		// SSE streams stay open for the whole scan
		r.Get("/scans/{jobId}/events", scanHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(5 * time.Minute))

			r.Post("/scans", scanHandler.Start)
			r.Get("/scans", scanHandler.List)
			r.Get("/scans/{jobId}", scanHandler.Status)
			r.Get("/scans/{jobId}/results", scanHandler.Results)
			r.Get("/scans/{jobId}/results/{index}", scanHandler.Download)
			r.Delete("/scans/{jobId}", scanHandler.Delete)
		})
	})
}
