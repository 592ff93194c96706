package core

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
)

// DefaultSessionLifetime is used when the remote access token carries no
// readable expiry.
const DefaultSessionLifetime = 7 * time.Hour

const sessionTokenLength = 32

var _ service.AccountService = &accountService{}

type accountService struct {
	api      service.AccountAPI
	storage  service.SessionStorage
	onLogout []func(sessionToken string)
	log      zerolog.Logger
	now      func() time.Time
}

func (s *accountService) Login(ctx context.Context, creds service.Credentials) (*service.Session, error) {
	const op errs.Op = "accountService.Login"

	err := validateCredentials(creds)
	if err != nil {
		return nil, errs.E(errs.Validation, op, err)
	}

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		return nil, errs.E(op, err)
	}

	now := s.now()

	sess := &service.Session{
		Token:       auth.GenerateSecureToken(sessionTokenLength),
		UserID:      res.UserID,
		Email:       creds.Email,
		AccessToken: res.AccessToken,
		Created:     now,
		Expires:     tokenExpiry(res.AccessToken, now),
	}

	err = s.storage.CreateSession(ctx, sess)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return sess, nil
}

func (s *accountService) Signup(ctx context.Context, creds service.Credentials) (*service.SignupResult, error) {
	const op errs.Op = "accountService.Signup"

	err := validateCredentials(creds)
	if err != nil {
		return nil, errs.E(errs.Validation, op, err)
	}

	res, err := s.api.Signup(ctx, creds)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return res, nil
}

func (s *accountService) Logout(ctx context.Context, sessionToken string) error {
	const op errs.Op = "accountService.Logout"

	sess, err := s.storage.GetSession(ctx, sessionToken)
	if err != nil && !errs.KindIs(errs.NotExist, err) {
		return errs.E(op, err)
	}

	if sess != nil {
		err = s.api.Logout(ctx, sess.AccessToken)
		if err != nil {
			s.log.Warn().Err(err).Str("user", sess.UserID).Msg("remote logout failed, clearing local session anyway")
		}
	}

	for _, fn := range s.onLogout {
		fn(sessionToken)
	}

	err = s.storage.DeleteSession(ctx, sessionToken)
	if err != nil {
		return errs.E(op, err)
	}

	return nil
}

func (s *accountService) CurrentUser(ctx context.Context) (*service.User, error) {
	const op errs.Op = "accountService.CurrentUser"

	user := auth.GetUser(ctx)
	if user == nil {
		return nil, errs.E(errs.Unauthenticated, op, errs.Detail("You must be logged in"), "no user in context")
	}

	return user, nil
}

func (s *accountService) SessionFromToken(ctx context.Context, sessionToken string) (*service.Session, error) {
	const op errs.Op = "accountService.SessionFromToken"

	sess, err := s.storage.GetSession(ctx, sessionToken)
	if err != nil {
		return nil, errs.E(op, err)
	}

	if !sess.Expires.After(s.now()) {
		err = s.storage.DeleteSession(ctx, sessionToken)
		if err != nil {
			s.log.Info().Err(err).Msg("deleting expired session")
		}

		return nil, errs.E(errs.Unauthenticated, op, errs.Detail("Your session has expired"), "session expired")
	}

	return sess, nil
}

func validateCredentials(creds service.Credentials) error {
	return validation.ValidateStruct(&creds,
		validation.Field(&creds.Email, validation.Required, is.EmailFormat),
		validation.Field(&creds.Password, validation.Required),
	)
}

// tokenExpiry reads the exp claim of the access token. The token is not
// verified, the remote service does that on every call.
func tokenExpiry(accessToken string, now time.Time) time.Time {
	claims := &jwt.RegisteredClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	if err != nil || claims.ExpiresAt == nil || !claims.ExpiresAt.After(now) {
		return now.Add(DefaultSessionLifetime)
	}

	return claims.ExpiresAt.Time
}

type AccountOption func(*accountService)

// WithLogoutHook registers fn to run with the session token whenever a
// user logs out.
func WithLogoutHook(fn func(sessionToken string)) AccountOption {
	return func(s *accountService) {
		s.onLogout = append(s.onLogout, fn)
	}
}

func WithAccountClock(now func() time.Time) AccountOption {
	return func(s *accountService) {
		s.now = now
	}
}

func NewAccountService(api service.AccountAPI, storage service.SessionStorage, log zerolog.Logger, opts ...AccountOption) *accountService {
	s := &accountService{
		api:     api,
		storage: storage,
		log:     log,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
