package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tablewise/portal/pkg/database/gensql"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
)

var _ service.SessionStorage = &sessionStorage{}

type SessionQueries interface {
	CreateSession(ctx context.Context, arg gensql.CreateSessionParams) error
	GetSession(ctx context.Context, token string) (gensql.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type sessionStorage struct {
	queries SessionQueries
}

func (s *sessionStorage) CreateSession(ctx context.Context, session *service.Session) error {
	const op errs.Op = "sessionStorage.CreateSession"

	err := s.queries.CreateSession(ctx, gensql.CreateSessionParams{
		Token:       session.Token,
		UserID:      session.UserID,
		Email:       session.Email,
		AccessToken: session.AccessToken,
		Expires:     session.Expires,
	})
	if err != nil {
		return errs.E(errs.Database, op, errs.UserName(session.Email), err)
	}

	return nil
}

func (s *sessionStorage) GetSession(ctx context.Context, token string) (*service.Session, error) {
	const op errs.Op = "sessionStorage.GetSession"

	raw, err := s.queries.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.E(errs.NotExist, op, errs.Parameter("token"), err)
		}

		return nil, errs.E(errs.Database, op, err)
	}

	return &service.Session{
		Token:       raw.Token,
		UserID:      raw.UserID,
		Email:       raw.Email,
		AccessToken: raw.AccessToken,
		Created:     raw.Created,
		Expires:     raw.Expires,
	}, nil
}

func (s *sessionStorage) DeleteSession(ctx context.Context, token string) error {
	const op errs.Op = "sessionStorage.DeleteSession"

	err := s.queries.DeleteSession(ctx, token)
	if err != nil {
		return errs.E(errs.Database, op, err)
	}

	return nil
}

func (s *sessionStorage) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	const op errs.Op = "sessionStorage.DeleteExpiredSessions"

	n, err := s.queries.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, errs.E(errs.Database, op, err)
	}

	return n, nil
}

func NewSessionStorage(queries SessionQueries) *sessionStorage {
	return &sessionStorage{
		queries: queries,
	}
}
