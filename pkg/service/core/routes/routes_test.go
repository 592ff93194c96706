package routes_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/notify"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/remote/remotetest"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/service/core"
	httpapi "github.com/tablewise/portal/pkg/service/core/api/http"
	slackapi "github.com/tablewise/portal/pkg/service/core/api/slack"
	"github.com/tablewise/portal/pkg/service/core/handlers"
	"github.com/tablewise/portal/pkg/service/core/routes"
)

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]*service.Session
}

func (m *memorySessions) CreateSession(_ context.Context, sess *service.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sess.Token] = sess

	return nil
}

func (m *memorySessions) GetSession(_ context.Context, token string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return nil, errs.E(errs.NotExist, "session not found")
	}

	return sess, nil
}

func (m *memorySessions) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)

	return nil
}

func (m *memorySessions) DeleteExpiredSessions(context.Context) (int64, error) {
	return 0, nil
}

func newRouter(t *testing.T, fake *remotetest.Server) chi.Router {
	t.Helper()

	log := zerolog.Nop()
	client := remote.New(fake.URL, nil)
	toasts := notify.New(0)
	team := core.NewTeamNotifier(slackapi.NewNoopSlackAPI())

	ops := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "verification_operations_total"}, []string{"operation", "outcome"})

	services := core.NewServices(
		core.NewAccountService(httpapi.NewAccountAPI(client), &memorySessions{sessions: map[string]*service.Session{}}, log),
		core.NewRequestService(httpapi.NewRequestsAPI(client), nil, toasts, team, log),
		core.NewVerificationService(httpapi.NewVerificationAPI(client), toasts, team, ops, log),
		toasts,
	)

	cookie := auth.CookieSettings{Name: "portal_session", Path: "/", HttpOnly: true}
	authenticator := auth.NewMiddleware(services.AccountService, cookie.Name, log).Handler
	requireUser := auth.RequireUser(log)

	h := handlers.NewHandlers(services, cookie)

	registry := prometheus.NewRegistry()
	registry.MustRegister(ops)

	router := chi.NewRouter()
	routes.Add(router, nil,
		routes.NewAccountRoutes(routes.NewAccountEndpoints(log, h.AccountHandler), authenticator, requireUser),
		routes.NewProjectsRoutes(routes.NewProjectsEndpoints(log, h.ProjectsHandler), authenticator, requireUser),
		routes.NewVerificationRoutes(routes.NewVerificationEndpoints(log, h.VerificationHandler), authenticator, requireUser),
		routes.NewNotificationsRoutes(routes.NewNotificationsEndpoints(log, h.NotificationsHandler), authenticator, requireUser),
		routes.NewMetricsRoutes(routes.NewMetricsEndpoints(registry)),
	)

	return router
}

func do(t *testing.T, client *http.Client, method, url string, body any) (int, string) {
	t.Helper()

	var r *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		r = bytes.NewReader(data)
	} else {
		r = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	buf := &bytes.Buffer{}
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)

	return res.StatusCode, buf.String()
}

func TestRoutes(t *testing.T) {
	fake := remotetest.New()
	defer fake.Close()

	userID := fake.AddUser("ola@example.com", "secret")
	fake.AddProject("shop", userID, &remote.Project{
		ID:   "p-1",
		Name: "shop",
		Tables: []remote.Table{
			{Name: "orders", Description: "Orders"},
			{Name: "users", Description: "Users"},
		},
	})

	server := httptest.NewServer(newRouter(t, fake))
	defer server.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := &http.Client{Jar: jar}

	status, body := do(t, client, http.MethodGet, server.URL+"/api/projects/shop/verification/", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"detail":"You must be logged in","kind":"unauthenticated_error"}`, body)

	status, body = do(t, client, http.MethodPost, server.URL+"/api/login", service.Credentials{Email: "ola@example.com", Password: "secret"})
	require.Equal(t, http.StatusOK, status, body)

	status, body = do(t, client, http.MethodGet, server.URL+"/api/projects/shop/verification/", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"currentIndex":0`)

	status, _ = do(t, client, http.MethodPut, server.URL+"/api/projects/shop/verification/columns/x", handlers.EditDescriptionInput{Description: "d"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, client, http.MethodPut, server.URL+"/api/projects/shop/verification/description", handlers.EditDescriptionInput{Description: "All orders"})
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, client, http.MethodPost, server.URL+"/api/projects/shop/verification/navigate", handlers.NavigateInput{Index: 1})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body, core.UnsavedChangesPrompt)

	status, body = do(t, client, http.MethodPost, server.URL+"/api/projects/shop/verification/navigate", handlers.NavigateInput{Index: 1, Discard: true})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"currentIndex":1`)

	status, _ = do(t, client, http.MethodDelete, server.URL+"/api/projects/shop/verification/", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, client, http.MethodGet, server.URL+"/api/projects/shop/verification/state", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, client, http.MethodGet, server.URL+"/internal/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `verification_operations_total{operation="fetch",outcome="ok"} 1`)

	status, _ = do(t, client, http.MethodPost, server.URL+"/api/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, client, http.MethodGet, server.URL+"/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPrint(t *testing.T) {
	fake := remotetest.New()
	defer fake.Close()

	out := &strings.Builder{}
	require.NoError(t, routes.Print(newRouter(t, fake), out))

	assert.Contains(t, out.String(), "/api/projects/{key}/verification/navigate")
	assert.Contains(t, out.String(), "/internal/metrics")
}

func TestAdd_CORS(t *testing.T) {
	testCases := []struct {
		name        string
		origins     []string
		origin      string
		expectAllow string
	}{
		{
			name:        "configured origin",
			origins:     []string{"http://localhost:3000"},
			origin:      "http://localhost:3000",
			expectAllow: "http://localhost:3000",
		},
		{
			name:        "unknown origin",
			origins:     []string{"http://localhost:3000"},
			origin:      "http://evil.example.com",
			expectAllow: "",
		},
		{
			name:        "any http origin by default",
			origin:      "http://portal.example.com",
			expectAllow: "http://portal.example.com",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := chi.NewRouter()
			routes.Add(router, tc.origins, routes.NewMetricsRoutes(routes.NewMetricsEndpoints(prometheus.NewRegistry())))

			req := httptest.NewRequest(http.MethodOptions, routes.MetricsPath, nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectAllow, rec.Header().Get("Access-Control-Allow-Origin"))

			if tc.expectAllow != "" {
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}
