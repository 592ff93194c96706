package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/remote/remotetest"
	"github.com/tablewise/portal/pkg/service"
)

const (
	testEmail    = "ola@example.com"
	testPassword = "secret"
	testSession  = "browser-session-1"
)

type fakeTeam struct {
	mu        sync.Mutex
	submitted []string
	completed []string
}

func (f *fakeTeam) ProjectSubmitted(_ context.Context, _ *service.User, req *service.ProjectRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, req.Name)

	return nil
}

func (f *fakeTeam) VerificationCompleted(_ context.Context, _ *service.User, project *service.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completed = append(f.completed, project.Name)

	return nil
}

func (f *fakeTeam) Completed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.completed...)
}

func (f *fakeTeam) Submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.submitted...)
}

type fakeInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeInvalidator) InvalidateProgress(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keys = append(f.keys, key)
}

// fixture is a fake conversion service with one logged in user.
type fixture struct {
	server *remotetest.Server
	client *remote.Client
	userID string
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := remotetest.New()
	t.Cleanup(server.Close)

	userID := server.AddUser(testEmail, testPassword)

	sess := &service.Session{
		Token:       testSession,
		UserID:      userID,
		Email:       testEmail,
		AccessToken: server.Token(userID),
		Created:     time.Now(),
		Expires:     time.Now().Add(time.Hour),
	}

	return &fixture{
		server: server,
		client: remote.New(server.URL, nil),
		userID: userID,
		ctx:    auth.SetSession(context.Background(), sess),
	}
}

func shopProject(verified ...bool) *remote.Project {
	p := &remote.Project{
		ID:   "p-1",
		Name: "shop",
		Tables: []remote.Table{
			{
				Name:        "orders",
				Description: "Orders placed by customers",
				Columns: []remote.Column{
					{ColumnName: "id", Description: "Order id"},
					{ColumnName: "total", Description: "Order total"},
				},
			},
			{
				Name:        "users",
				Description: "Registered users",
				Columns:     []remote.Column{{ColumnName: "email", Description: "Login email"}},
			},
		},
	}

	for i, v := range verified {
		p.Tables[i].Verified = v
	}

	return p
}

func titles(toasts []service.Toast) []string {
	out := make([]string, len(toasts))
	for i, t := range toasts {
		out[i] = t.Title
	}

	return out
}
