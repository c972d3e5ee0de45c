package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/eventsnap/photo-finder/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	personsHandler := handlers.NewPersonsHandler(s.svc)
	searchHandler := handlers.NewSearchHandler(s.svc)
	photosHandler := handlers.NewPhotosHandler(s.svc)
	statsHandler := handlers.NewStatsHandler(s.svc)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Persons
		r.Get("/persons", personsHandler.List)
		r.Post("/persons", personsHandler.Register)
		r.Delete("/persons/{name}", personsHandler.Remove)

		// Search
		r.Post("/search/person", searchHandler.ByPerson)
		r.Post("/search/text", searchHandler.ByText)
		r.Post("/search/download", searchHandler.Download)

		// Photos
		r.Get("/photos/thumb", photosHandler.Thumbnail)

		// Stats
		r.Get("/stats", statsHandler.Get)
	})
}
