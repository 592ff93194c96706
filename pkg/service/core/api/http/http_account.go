package http

import (
	"context"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/service"
)

var _ service.AccountAPI = &accountAPI{}

type accountAPI struct {
	fetcher remote.Fetcher
}

func (a *accountAPI) Login(ctx context.Context, creds service.Credentials) (*service.LoginResult, error) {
	const op errs.Op = "accountAPI.Login"

	res, err := a.fetcher.Login(ctx, &remote.Credentials{
		Email:    creds.Email,
		Password: creds.Password,
	})
	if err != nil {
		return nil, remoteError(op, errs.Parameter("email"), err)
	}

	return &service.LoginResult{
		UserID:      res.ID,
		AccessToken: res.AccessToken,
	}, nil
}

func (a *accountAPI) Signup(ctx context.Context, creds service.Credentials) (*service.SignupResult, error) {
	const op errs.Op = "accountAPI.Signup"

	res, err := a.fetcher.Signup(ctx, &remote.Credentials{
		Email:    creds.Email,
		Password: creds.Password,
	})
	if err != nil {
		return nil, remoteError(op, errs.Parameter("email"), err)
	}

	return &service.SignupResult{
		UserID: res.ID,
	}, nil
}

func (a *accountAPI) Logout(ctx context.Context, accessToken string) error {
	const op errs.Op = "accountAPI.Logout"

	err := a.fetcher.Logout(ctx, accessToken)
	if err != nil {
		return remoteError(op, "", err)
	}

	return nil
}

func NewAccountAPI(fetcher remote.Fetcher) *accountAPI {
	return &accountAPI{
		fetcher: fetcher,
	}
}
