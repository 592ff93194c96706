package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/service/core/handlers"
	"github.com/tablewise/portal/pkg/service/core/transport"
)

type ProjectsEndpoints struct {
	ListProjects  http.HandlerFunc
	SubmitProject http.HandlerFunc
}

func NewProjectsEndpoints(log zerolog.Logger, h *handlers.ProjectsHandler) *ProjectsEndpoints {
	return &ProjectsEndpoints{
		ListProjects:  transport.For(h.List).Build(log),
		SubmitProject: transport.For(h.Submit).RequestFrom(handlers.DecodeNewProject).Build(log),
	}
}

func NewProjectsRoutes(endpoints *ProjectsEndpoints, auth, requireUser func(http.Handler) http.Handler) AddRoutesFn {
	return func(router chi.Router) {
		router.Route("/api/projects", func(r chi.Router) {
			r.Use(auth, requireUser)
			r.Get("/", endpoints.ListProjects)
			r.Post("/", endpoints.SubmitProject)
		})
	}
}
