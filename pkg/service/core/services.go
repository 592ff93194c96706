package core

import "github.com/tablewise/portal/pkg/service"

type Services struct {
	AccountService      service.AccountService
	RequestService      service.RequestService
	VerificationService service.VerificationService
	Notifier            service.Notifier
}

func NewServices(
	accountService service.AccountService,
	requestService service.RequestService,
	verificationService service.VerificationService,
	notifier service.Notifier,
) *Services {
	return &Services{
		AccountService:      accountService,
		RequestService:      requestService,
		VerificationService: verificationService,
		Notifier:            notifier,
	}
}
