package handlers

import (
	"context"
	"net/http"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/service/core/transport"
)

type AccountHandler struct {
	service service.AccountService
	cookie  auth.CookieSettings
}

func (h *AccountHandler) Login(ctx context.Context, _ *http.Request, in service.Credentials) (*transport.WithCookies[*service.User], error) {
	const op errs.Op = "AccountHandler.Login"

	sess, err := h.service.Login(ctx, in)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return transport.NewWithCookies(http.StatusOK, sess.User(), h.cookie.Cookie(sess.Token, sess.Expires)), nil
}

func (h *AccountHandler) Signup(ctx context.Context, _ *http.Request, in service.Credentials) (*signedUp, error) {
	const op errs.Op = "AccountHandler.Signup"

	res, err := h.service.Signup(ctx, in)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return &signedUp{SignupResult: res}, nil
}

// Logout clears the session cookie in all cases, the same way the local
// session is always removed.
func (h *AccountHandler) Logout(ctx context.Context, _ *http.Request, _ any) (*transport.WithCookies[any], error) {
	const op errs.Op = "AccountHandler.Logout"

	sess := auth.GetSession(ctx)
	if sess == nil {
		return nil, errs.E(errs.Unauthenticated, op, errs.Detail("You must be logged in"), "no session")
	}

	err := h.service.Logout(ctx, sess.Token)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return transport.NewWithCookies[any](http.StatusNoContent, nil, h.cookie.Expired()), nil
}

func (h *AccountHandler) Me(ctx context.Context, _ *http.Request, _ any) (*service.User, error) {
	return h.service.CurrentUser(ctx)
}

type signedUp struct {
	*service.SignupResult
}

func (s *signedUp) StatusCode() int {
	return http.StatusCreated
}

func NewAccountHandler(s service.AccountService, cookie auth.CookieSettings) *AccountHandler {
	return &AccountHandler{
		service: s,
		cookie:  cookie,
	}
}
