package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/service"
)

type sessionsFake map[string]*service.Session

func (f sessionsFake) SessionFromToken(_ context.Context, token string) (*service.Session, error) {
	if token == "broken" {
		return nil, errs.E(errs.Database, errs.Op("fake"), "connection refused")
	}

	sess, ok := f[token]
	if !ok {
		return nil, errs.E(errs.NotExist, errs.Op("fake"), "no session")
	}

	return sess, nil
}

func TestMiddleware(t *testing.T) {
	sessions := sessionsFake{
		"good": {Token: "good", UserID: "u1", Email: "a@b.c", AccessToken: "jwt"},
	}

	testCases := []struct {
		name        string
		cookie      string
		status      int
		user        *service.User
		accessToken string
	}{
		{
			name:   "no cookie",
			status: http.StatusOK,
		},
		{
			name:        "valid session",
			cookie:      "good",
			status:      http.StatusOK,
			user:        &service.User{ID: "u1", Email: "a@b.c"},
			accessToken: "jwt",
		},
		{
			name:   "unknown session",
			cookie: "missing",
			status: http.StatusOK,
		},
		{
			name:   "storage failure",
			cookie: "broken",
			status: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotUser *service.User
			var gotToken string

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = auth.GetUser(r.Context())
				gotToken = remote.AccessTokenFrom(r.Context())
			})

			h := auth.NewMiddleware(sessions, "portal_session", zerolog.Nop()).Handler(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "portal_session", Value: tc.cookie})
			}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.user, gotUser)
			assert.Equal(t, tc.accessToken, gotToken)
		})
	}
}

func TestRequireUser(t *testing.T) {
	h := auth.RequireUser(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"detail":"You must be logged in","kind":"unauthenticated_error"}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.SetUser(req.Context(), &service.User{ID: "u1"}))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestGenerateSecureToken(t *testing.T) {
	a := auth.GenerateSecureToken(32)
	b := auth.GenerateSecureToken(32)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
