package remote_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/portal/pkg/remote"
)

func TestClient_GetProjectVerification(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		body      string
		expect    *remote.Project
		expectErr *remote.APIError
	}{
		{
			name:   "should return project",
			status: http.StatusOK,
			body:   `{"id":"42","name":"shop","tables":[{"name":"orders","description":"Orders","columns":[{"column_name":"id","description":"Key"}],"verified":false}]}`,
			expect: &remote.Project{
				ID:   "42",
				Name: "shop",
				Tables: []remote.Table{
					{
						Name:        "orders",
						Description: "Orders",
						Columns:     []remote.Column{{ColumnName: "id", Description: "Key"}},
					},
				},
			},
		},
		{
			name:      "should return detail from error payload",
			status:    http.StatusNotFound,
			body:      `{"detail":"Project not found"}`,
			expectErr: &remote.APIError{StatusCode: http.StatusNotFound, Detail: "Project not found", Method: http.MethodGet, URL: "/projects/shop/verification"},
		},
		{
			name:      "should return error without detail",
			status:    http.StatusInternalServerError,
			body:      `oops`,
			expectErr: &remote.APIError{StatusCode: http.StatusInternalServerError, Method: http.MethodGet, URL: "/projects/shop/verification"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, remote.ClientID, r.Header.Get(remote.ClientIDHeader))
				assert.Equal(t, "/projects/shop/verification", r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)

				cookie, err := r.Cookie(remote.AccessTokenCookie)
				require.NoError(t, err)
				assert.Equal(t, "token-1", cookie.Value)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer testServer.Close()

			client := remote.New(testServer.URL, http.DefaultClient)
			ctx := remote.WithAccessToken(context.Background(), "token-1")

			got, err := client.GetProjectVerification(ctx, "shop")
			if tc.expectErr != nil {
				var apiErr *remote.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tc.expectErr, apiErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expect, got)
			}
		})
	}
}

func TestClient_UpdateTable(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/shop/tables/order items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, map[string]any{
			"description": "All orders",
			"columns": []any{
				map[string]any{"column_name": "id", "description": "Key"},
			},
		}, got)

		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	}))
	defer testServer.Close()

	client := remote.New(testServer.URL, http.DefaultClient)

	err := client.UpdateTable(context.Background(), "shop", "order items", &remote.TableUpdate{
		Description: "All orders",
		Columns:     []remote.Column{{ColumnName: "id", Description: "Key"}},
	})
	require.NoError(t, err)
}

func TestClient_VerifyTable(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/shop/tables/orders/verify", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(body))

		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"Table already verified"}`)
	}))
	defer testServer.Close()

	client := remote.New(testServer.URL, http.DefaultClient)

	err := client.VerifyTable(context.Background(), "shop", "orders")

	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Table already verified", apiErr.Detail)
}

func TestClient_Login(t *testing.T) {
	testCases := []struct {
		name      string
		cookie    bool
		expectErr error
	}{
		{
			name:   "should capture access token cookie",
			cookie: true,
		},
		{
			name:      "should fail without access token",
			cookie:    false,
			expectErr: remote.ErrNoAccessToken,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/users/login", r.URL.Path)

				var creds remote.Credentials
				require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
				assert.Equal(t, "ada@example.com", creds.Email)

				if tc.cookie {
					http.SetCookie(w, &http.Cookie{Name: remote.AccessTokenCookie, Value: "jwt-token", HttpOnly: true})
				}

				_, _ = io.WriteString(w, `{"id":"user-1"}`)
			}))
			defer testServer.Close()

			client := remote.New(testServer.URL, http.DefaultClient)

			got, err := client.Login(context.Background(), &remote.Credentials{Email: "ada@example.com", Password: "secret"})
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, &remote.LoginResponse{ID: "user-1", AccessToken: "jwt-token"}, got)
		})
	}
}

func TestClient_Logout(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/logout", r.URL.Path)

		cookie, err := r.Cookie(remote.AccessTokenCookie)
		require.NoError(t, err)
		assert.Equal(t, "jwt-token", cookie.Value)

		w.WriteHeader(http.StatusOK)
	}))
	defer testServer.Close()

	client := remote.New(testServer.URL, http.DefaultClient)
	require.NoError(t, client.Logout(context.Background(), "jwt-token"))
}

func TestClient_ListRequests(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/requests/", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userid"))

		_, _ = io.WriteString(w, `{"requests":[{"id":"r1","name":"shop","dbType":"postgresql","userid":"user-1","status":"need-verification","description":"","verified":false,"submittedDate":"2024-01-01T00:00:00Z"}]}`)
	}))
	defer testServer.Close()

	client := remote.New(testServer.URL, http.DefaultClient)

	got, err := client.ListRequests(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got.Requests, 1)
	assert.Equal(t, "need-verification", got.Requests[0].Status)
}

func TestClient_RequestStatus(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/requests/status", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"shop","id":"r1"}`, string(body))

		_, _ = io.WriteString(w, `{"request_id":"r1","database_name":"shop","verified_tables":2,"total_tables":3}`)
	}))
	defer testServer.Close()

	client := remote.New(testServer.URL, http.DefaultClient)

	got, err := client.RequestStatus(context.Background(), "shop", "r1")
	require.NoError(t, err)
	assert.Equal(t, &remote.RequestStatus{RequestID: "r1", DatabaseName: "shop", VerifiedTables: 2, TotalTables: 3}, got)
}

func TestClient_CreateRequest(t *testing.T) {
	doc := []byte("DB_HOST=localhost\n")

	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/requests/", r.URL.Path)

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, base64.StdEncoding.EncodeToString(doc), got["credentialDoc"])
		assert.Equal(t, "processing", got["status"])
		assert.Equal(t, false, got["verified"])

		_, _ = io.WriteString(w, `{"id":"r2","name":"shop","status":"processing"}`)
	}))
	defer testServer.Close()

	client := remote.New(testServer.URL, http.DefaultClient)

	got, err := client.CreateRequest(context.Background(), &remote.NewRequest{
		Name:          "shop",
		DBType:        "postgresql",
		UserID:        "user-1",
		Status:        "processing",
		CredentialDoc: doc,
		SubmittedDate: "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ID)
}
