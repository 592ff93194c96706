package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tablewise/portal/pkg/database/gensql"
	"github.com/tablewise/portal/pkg/service/core/storage/postgres"
)

var _ postgres.SessionQueries = &SessionQueriesMock{}

type SessionQueriesMock struct {
	mock.Mock
}

func (m *SessionQueriesMock) CreateSession(ctx context.Context, arg gensql.CreateSessionParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *SessionQueriesMock) GetSession(ctx context.Context, token string) (gensql.Session, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(gensql.Session), args.Error(1)
}

func (m *SessionQueriesMock) DeleteSession(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *SessionQueriesMock) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
