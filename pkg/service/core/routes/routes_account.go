package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/service/core/handlers"
	"github.com/tablewise/portal/pkg/service/core/transport"
)

type AccountEndpoints struct {
	Login  http.HandlerFunc
	Signup http.HandlerFunc
	Logout http.HandlerFunc
	Me     http.HandlerFunc
}

func NewAccountEndpoints(log zerolog.Logger, h *handlers.AccountHandler) *AccountEndpoints {
	return &AccountEndpoints{
		Login:  transport.For(h.Login).RequestFromJSON().Build(log),
		Signup: transport.For(h.Signup).RequestFromJSON().Build(log),
		Logout: transport.For(h.Logout).Build(log),
		Me:     transport.For(h.Me).Build(log),
	}
}

func NewAccountRoutes(endpoints *AccountEndpoints, auth, requireUser func(http.Handler) http.Handler) AddRoutesFn {
	return func(router chi.Router) {
		router.Route("/api", func(r chi.Router) {
			r.Post("/login", endpoints.Login)
			r.Post("/signup", endpoints.Signup)

			r.Group(func(r chi.Router) {
				r.Use(auth, requireUser)
				r.Post("/logout", endpoints.Logout)
				r.Get("/me", endpoints.Me)
			})
		})
	}
}
