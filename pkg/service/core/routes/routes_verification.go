package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/service/core/handlers"
	"github.com/tablewise/portal/pkg/service/core/transport"
)

type VerificationEndpoints struct {
	Open                  http.HandlerFunc
	State                 http.HandlerFunc
	EditDescription       http.HandlerFunc
	EditColumnDescription http.HandlerFunc
	Save                  http.HandlerFunc
	Verify                http.HandlerFunc
	NavigateTo            http.HandlerFunc
	Close                 http.HandlerFunc
}

func NewVerificationEndpoints(log zerolog.Logger, h *handlers.VerificationHandler) *VerificationEndpoints {
	return &VerificationEndpoints{
		Open:                  transport.For(h.Open).Build(log),
		State:                 transport.For(h.State).Build(log),
		EditDescription:       transport.For(h.EditDescription).RequestFromJSON().Build(log),
		EditColumnDescription: transport.For(h.EditColumnDescription).RequestFromJSON().Build(log),
		Save:                  transport.For(h.Save).Build(log),
		Verify:                transport.For(h.Verify).Build(log),
		NavigateTo:            transport.For(h.NavigateTo).RequestFromJSON().Build(log),
		Close:                 transport.For(h.Close).Build(log),
	}
}

func NewVerificationRoutes(endpoints *VerificationEndpoints, auth, requireUser func(http.Handler) http.Handler) AddRoutesFn {
	return func(router chi.Router) {
		router.Route("/api/projects/{key}/verification", func(r chi.Router) {
			r.Use(auth, requireUser)
			r.Get("/", endpoints.Open)
			r.Delete("/", endpoints.Close)
			r.Get("/state", endpoints.State)
			r.Put("/description", endpoints.EditDescription)
			r.Put("/columns/{index}", endpoints.EditColumnDescription)
			r.Post("/save", endpoints.Save)
			r.Post("/verify", endpoints.Verify)
			r.Post("/navigate", endpoints.NavigateTo)
		})
	}
}
