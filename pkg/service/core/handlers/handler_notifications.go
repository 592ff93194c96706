package handlers

import (
	"context"
	"net/http"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
)

type NotificationsHandler struct {
	notifier service.Notifier
}

type Notifications struct {
	Toasts []service.Toast `json:"toasts"`
}

func (h *NotificationsHandler) Drain(ctx context.Context, _ *http.Request, _ any) (*Notifications, error) {
	const op errs.Op = "NotificationsHandler.Drain"

	sess := auth.GetSession(ctx)
	if sess == nil {
		return nil, errs.E(errs.Unauthenticated, op, errs.Detail("You must be logged in"), "no session")
	}

	return &Notifications{
		Toasts: h.notifier.Drain(sess.Token),
	}, nil
}

func NewNotificationsHandler(notifier service.Notifier) *NotificationsHandler {
	return &NotificationsHandler{
		notifier: notifier,
	}
}
