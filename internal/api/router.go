package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joshp123/omhome/internal/server"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	live := server.LivenessHandler(s.version)
	r.Method(http.MethodGet, "/health", live)
	r.Method(http.MethodHead, "/health", live)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	if s.dashboards != nil {
		r.Handle("/dashboards/*", s.dashboards)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/snapshot", s.handleSnapshot)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/events", s.handleEvents)
		r.Get("/plugins", s.handleListPlugins)
		r.Get("/plugins/{id}/docs", s.handlePluginDocs)

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Get("/{key}", s.handleGetEntity)
			r.Post("/{key}/{action}", s.handleEntityAction)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no such route")
	})
	return r
}
