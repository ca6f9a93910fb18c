package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-matcher/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	embeddingsHandler := handlers.NewEmbeddingsHandler(s.store, s.runner, s.config.Web.UploadDir, s.logger)
	searchHandler := handlers.NewSearchHandler(s.config, s.runner, s.config.Web.UploadDir, s.logger)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", searchHandler.Search)

		r.Route("/{namespace}/embeddings", func(r chi.Router) {
			r.Get("/", embeddingsHandler.List)
			r.Post("/", embeddingsHandler.Create)
			r.Get("/{filename}", embeddingsHandler.Get)
			r.Delete("/{filename}", embeddingsHandler.Delete)
		})
	})
}
