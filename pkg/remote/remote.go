// Package remote provides a client for the API of the schema conversion
// service. Authenticated calls carry the user's access_token cookie, which
// is put on the context with WithAccessToken.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

const (
	AccessTokenCookie = "access_token"
	ClientIDHeader    = "X-Client-Id"
	ClientID          = "tablewise-portal"

	// LogoutTimeout bounds the logout call, it must never keep the user
	// waiting.
	LogoutTimeout = 5 * time.Second

	maxErrorBody = 64 * 1024
)

var ErrNoAccessToken = errors.New("no access token in login response")

type contextKey struct{}

// WithAccessToken returns a context whose outbound calls are authenticated
// with token.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

func AccessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(contextKey{}).(string)

	return token
}

type Fetcher interface {
	GetProjectVerification(ctx context.Context, projectKey string) (*Project, error)
	UpdateTable(ctx context.Context, projectKey, tableName string, update *TableUpdate) error
	VerifyTable(ctx context.Context, projectKey, tableName string) error
	Login(ctx context.Context, creds *Credentials) (*LoginResponse, error)
	Signup(ctx context.Context, creds *Credentials) (*UserResponse, error)
	Logout(ctx context.Context, accessToken string) error
	ListRequests(ctx context.Context, userID string) (*Requests, error)
	RequestStatus(ctx context.Context, name, id string) (*RequestStatus, error)
	CreateRequest(ctx context.Context, req *NewRequest) (*Request, error)
}

type Client struct {
	client *http.Client
	apiURL string
}

var _ Fetcher = &Client{}

// APIError is returned for every response outside the 2xx range. Detail is
// the "detail" field of the error payload when the service sent one.
type APIError struct {
	StatusCode int
	Detail     string
	Method     string
	URL        string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.URL, e.StatusCode, e.Detail)
	}

	return fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.URL, e.StatusCode)
}

type Column struct {
	ColumnName  string `json:"column_name"`
	Description string `json:"description"`
}

type Table struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
	Verified    bool     `json:"verified"`
}

type Project struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tables []Table `json:"tables"`
}

type TableUpdate struct {
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID string `json:"id"`
}

type LoginResponse struct {
	ID          string `json:"id"`
	AccessToken string `json:"-"`
}

type Request struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DBType        string `json:"dbType"`
	UserID        string `json:"userid"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	Verified      bool   `json:"verified"`
	SubmittedDate string `json:"submittedDate"`
}

type Requests struct {
	Requests []Request `json:"requests"`
}

type RequestStatus struct {
	RequestID      string `json:"request_id"`
	DatabaseName   string `json:"database_name"`
	VerifiedTables int    `json:"verified_tables"`
	TotalTables    int    `json:"total_tables"`
}

// NewRequest is a conversion request. CredentialDoc is encoded as base64.
type NewRequest struct {
	Name          string `json:"name"`
	DBType        string `json:"dbType"`
	UserID        string `json:"userid"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	Verified      bool   `json:"verified"`
	CredentialDoc []byte `json:"credentialDoc"`
	SubmittedDate string `json:"submittedDate"`
}

type statusRequest struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type errorPayload struct {
	Detail any `json:"detail"`
}

func (c *Client) GetProjectVerification(ctx context.Context, projectKey string) (*Project, error) {
	var project Project

	err := c.sendRequestAndDeserialize(ctx, http.MethodGet, c.path("projects", projectKey, "verification"), nil, &project)
	if err != nil {
		return nil, err
	}

	return &project, nil
}

func (c *Client) UpdateTable(ctx context.Context, projectKey, tableName string, update *TableUpdate) error {
	return c.sendRequestAndDeserialize(ctx, http.MethodPut, c.path("projects", projectKey, "tables", tableName), update, nil)
}

func (c *Client) VerifyTable(ctx context.Context, projectKey, tableName string) error {
	return c.sendRequestAndDeserialize(ctx, http.MethodPut, c.path("projects", projectKey, "tables", tableName, "verify"), struct{}{}, nil)
}

// Login authenticates the user. The service answers with the user id in the
// body and the access token in a cookie.
func (c *Client) Login(ctx context.Context, creds *Credentials) (*LoginResponse, error) {
	res, err := c.do(ctx, http.MethodPost, c.path("users", "login"), creds)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out LoginResponse

	err = json.NewDecoder(res.Body).Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	for _, cookie := range res.Cookies() {
		if cookie.Name == AccessTokenCookie {
			out.AccessToken = cookie.Value
		}
	}

	if out.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	return &out, nil
}

func (c *Client) Signup(ctx context.Context, creds *Credentials) (*UserResponse, error) {
	var out UserResponse

	err := c.sendRequestAndDeserialize(ctx, http.MethodPost, c.path("users", "signup"), creds, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(WithAccessToken(ctx, accessToken), LogoutTimeout)
	defer cancel()

	return c.sendRequestAndDeserialize(ctx, http.MethodPost, c.path("users", "logout"), struct{}{}, nil)
}

func (c *Client) ListRequests(ctx context.Context, userID string) (*Requests, error) {
	var out Requests

	u := c.path("requests") + "/?" + url.Values{"userid": []string{userID}}.Encode()

	err := c.sendRequestAndDeserialize(ctx, http.MethodGet, u, nil, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) RequestStatus(ctx context.Context, name, id string) (*RequestStatus, error) {
	var out RequestStatus

	err := c.sendRequestAndDeserialize(ctx, http.MethodPost, c.path("requests", "status"), &statusRequest{Name: name, ID: id}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) CreateRequest(ctx context.Context, req *NewRequest) (*Request, error) {
	var out Request

	err := c.sendRequestAndDeserialize(ctx, http.MethodPost, c.path("requests")+"/", req, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) path(segments ...string) string {
	u := c.apiURL

	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}

	return u
}

func (c *Client) sendRequestAndDeserialize(ctx context.Context, method, url string, body, into any) error {
	res, err := c.do(ctx, method, url, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if into == nil {
		_, _ = io.Copy(io.Discard, res.Body)

		return nil
	}

	err = json.NewDecoder(res.Body).Decode(into)
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// do sends the request and returns the response when the status is 2xx.
// The caller closes the body.
func (c *Client) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	req, err := c.newRequestWithHeaders(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()

		return nil, apiErrorFrom(res)
	}

	return res, nil
}

func (c *Client) newRequestWithHeaders(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}

		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(ClientIDHeader, ClientID)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token := AccessTokenFrom(ctx); token != "" {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	}

	return req, nil
}

func apiErrorFrom(res *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: res.StatusCode,
		Method:     res.Request.Method,
		URL:        res.Request.URL.Path,
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var payload errorPayload
	if json.Unmarshal(data, &payload) != nil {
		return apiErr
	}

	switch d := payload.Detail.(type) {
	case string:
		apiErr.Detail = d
	case nil:
	default:
		// Validation errors come back as a list of objects.
		if b, err := json.Marshal(d); err == nil {
			apiErr.Detail = string(b)
		}
	}

	return apiErr
}

func New(apiURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	return &Client{
		client: client,
		apiURL: apiURL,
	}
}
