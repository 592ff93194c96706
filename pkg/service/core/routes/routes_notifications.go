package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/service/core/handlers"
	"github.com/tablewise/portal/pkg/service/core/transport"
)

type NotificationsEndpoints struct {
	Drain http.HandlerFunc
}

func NewNotificationsEndpoints(log zerolog.Logger, h *handlers.NotificationsHandler) *NotificationsEndpoints {
	return &NotificationsEndpoints{
		Drain: transport.For(h.Drain).Build(log),
	}
}

func NewNotificationsRoutes(endpoints *NotificationsEndpoints, auth, requireUser func(http.Handler) http.Handler) AddRoutesFn {
	return func(router chi.Router) {
		router.Route("/api/notifications", func(r chi.Router) {
			r.Use(auth, requireUser)
			r.Get("/", endpoints.Drain)
		})
	}
}
