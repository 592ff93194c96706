package handlers

import (
	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/service/core"
)

type Handlers struct {
	AccountHandler       *AccountHandler
	ProjectsHandler      *ProjectsHandler
	VerificationHandler  *VerificationHandler
	NotificationsHandler *NotificationsHandler
}

func NewHandlers(s *core.Services, cookie auth.CookieSettings) *Handlers {
	return &Handlers{
		AccountHandler:       NewAccountHandler(s.AccountService, cookie),
		ProjectsHandler:      NewProjectsHandler(s.RequestService),
		VerificationHandler:  NewVerificationHandler(s.VerificationService),
		NotificationsHandler: NewNotificationsHandler(s.Notifier),
	}
}
