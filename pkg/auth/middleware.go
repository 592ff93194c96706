package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/service"
)

type MiddlewareHandler func(http.Handler) http.Handler

type contextKey int

const (
	ContextUserKey contextKey = iota + 1
	ContextSessionKey
)

func GetUser(ctx context.Context) *service.User {
	user := ctx.Value(ContextUserKey)
	if user == nil {
		return nil
	}

	return user.(*service.User)
}

func SetUser(ctx context.Context, user *service.User) context.Context {
	return context.WithValue(ctx, ContextUserKey, user)
}

func GetSession(ctx context.Context) *service.Session {
	sess := ctx.Value(ContextSessionKey)
	if sess == nil {
		return nil
	}

	return sess.(*service.Session)
}

// SetSession stores the session and its user in the context, and makes the
// remote access token available to outbound calls.
func SetSession(ctx context.Context, sess *service.Session) context.Context {
	ctx = context.WithValue(ctx, ContextSessionKey, sess)
	ctx = SetUser(ctx, sess.User())

	return remote.WithAccessToken(ctx, sess.AccessToken)
}

type SessionRetriever interface {
	SessionFromToken(ctx context.Context, sessionToken string) (*service.Session, error)
}

type Middleware struct {
	sessions   SessionRetriever
	cookieName string
	log        zerolog.Logger
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := r.Cookie(m.cookieName)
		if err != nil || token.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.sessions.SessionFromToken(r.Context(), token.Value)
		if err != nil {
			if errs.KindIs(errs.NotExist, err) || errs.KindIs(errs.Unauthenticated, err) {
				next.ServeHTTP(w, r)
				return
			}

			errs.HTTPErrorResponse(w, m.log, errs.E(errs.Internal, errs.Op("auth.Middleware"), err))

			return
		}

		next.ServeHTTP(w, r.WithContext(SetSession(r.Context(), sess)))
	})
}

// RequireUser rejects requests that did not come with a valid session.
func RequireUser(log zerolog.Logger) MiddlewareHandler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUser(r.Context()) == nil {
				errs.HTTPErrorResponse(w, log, errs.E(errs.Unauthenticated, errs.Op("auth.RequireUser"), errs.Detail("You must be logged in")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func NewMiddleware(sessions SessionRetriever, cookieName string, log zerolog.Logger) *Middleware {
	return &Middleware{
		sessions:   sessions,
		cookieName: cookieName,
		log:        log,
	}
}
