package integration

import (
	"bytes"
	"database/sql"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"
)

const (
	postgresTag              = "16"
	containerLifetimeSeconds = 300
)

// containers owns the Docker resources started by one test.
type containers struct {
	t         *testing.T
	log       zerolog.Logger
	pool      *dockertest.Pool
	resources []*dockertest.Resource
}

// Cleanup purges every container started through c. Defer it right after
// NewContainers.
func (c *containers) Cleanup() {
	for _, r := range c.resources {
		if err := c.pool.Purge(r); err != nil {
			c.log.Warn().Err(err).Str("container", r.Container.Name).Msg("purging container")
		}
	}
}

// PostgresConfig describes the database the portal keeps its browser
// sessions and response cache in.
type PostgresConfig struct {
	User     string
	Password string
	Database string

	// HostPort is set once the container runs.
	HostPort string
}

func (c *PostgresConfig) ConnectionURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.HostPort,
		Path:     "/" + c.Database,
		RawQuery: "sslmode=disable",
	}

	return u.String()
}

func NewPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		User:     "portal",
		Password: "supersecret",
		Database: "portal",
	}
}

// RunPostgres starts Postgres and waits until it accepts connections.
func (c *containers) RunPostgres(cfg *PostgresConfig) *PostgresConfig {
	c.t.Helper()

	resource, err := c.pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        postgresTag,
		Env: []string{
			"POSTGRES_PASSWORD=" + cfg.Password,
			"POSTGRES_USER=" + cfg.User,
			"POSTGRES_DB=" + cfg.Database,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		c.t.Fatalf("starting postgres container: %s", err)
	}

	c.resources = append(c.resources, resource)

	err = resource.Expire(containerLifetimeSeconds)
	if err != nil {
		c.log.Warn().Err(err).Msg("setting container expiry")
	}

	cfg.HostPort = resource.GetHostPort("5432/tcp")
	c.log.Info().Str("host_port", cfg.HostPort).Msg("postgres container started")

	c.pool.MaxWait = 2 * time.Minute

	err = c.pool.Retry(func() error {
		db, err := sql.Open("postgres", cfg.ConnectionURL())
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Ping()
	})
	if err != nil {
		c.t.Fatalf("connecting to postgres: %s", err)
	}

	return cfg
}

// NewContainers connects to Docker and skips the test when no daemon is
// reachable, so the suite runs where Docker is available and is silent
// elsewhere.
func NewContainers(t *testing.T, log zerolog.Logger) *containers {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("connecting to Docker: %s", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Skipf("pinging Docker: %s", err)
	}

	return &containers{
		t:    t,
		log:  log,
		pool: pool,
	}
}

func Marshal(t *testing.T, v interface{}) []byte {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling: %s", err)
	}

	return b
}

func Unmarshal(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()

	d, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading: %s", err)
	}

	err = json.Unmarshal(d, v)
	if err != nil {
		t.Fatalf("unmarshaling %q: %s", d, err)
	}
}

type TestRunner interface {
	Post(input any, path string, params ...string) TestRunnerStatus
	PostForm(fields map[string]string, file []byte, path string) TestRunnerStatus
	Get(path string, params ...string) TestRunnerStatus
	Put(input any, path string, params ...string) TestRunnerStatus
	Delete(path string, params ...string) TestRunnerStatus
}

type TestRunnerStatus interface {
	Debug(out io.Writer) TestRunnerStatus
	HasStatusCode(code int) TestRunnerEnder
}

type TestRunnerEnder interface {
	Value(into any)
	Expect(expect, into any, opts ...cmp.Option)
}

// testRunner sends requests through a client with a cookie jar, so a login
// carries over to the following requests.
type testRunner struct {
	t      *testing.T
	s      *httptest.Server
	client *http.Client

	response *http.Response
}

func (r *testRunner) HasStatusCode(code int) TestRunnerEnder {
	r.t.Helper()

	if r.response.StatusCode != code {
		body, _ := httputil.DumpResponse(r.response, true)
		r.t.Errorf("expected status code %d, got %d\n%s", code, r.response.StatusCode, body)
	}

	return r
}

func (r *testRunner) Debug(out io.Writer) TestRunnerStatus {
	r.t.Helper()

	data, err := httputil.DumpResponse(r.response, true)
	if err != nil {
		r.t.Fatalf("dumping response: %s", err)
	}

	_, err = io.Copy(out, bytes.NewReader(data))
	if err != nil {
		r.t.Fatalf("writing response: %s", err)
	}

	return r
}

func (r *testRunner) Expect(expect, into any, opts ...cmp.Option) {
	r.t.Helper()

	Unmarshal(r.t, r.response.Body, into)
	diff := cmp.Diff(expect, into, opts...)
	if diff != "" {
		r.t.Errorf("unexpected response: %s", diff)
	}
}

func (r *testRunner) Value(into any) {
	r.t.Helper()

	Unmarshal(r.t, r.response.Body, into)
}

// buildURL appends params, given as key value pairs, as the query string.
func (r *testRunner) buildURL(path string, params ...string) string {
	r.t.Helper()

	if len(params)%2 != 0 {
		r.t.Fatalf("query parameters must come in key value pairs, got %d values", len(params))
	}

	query := url.Values{}
	for i := 0; i < len(params); i += 2 {
		query.Add(params[i], params[i+1])
	}

	u := r.s.URL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return u
}

func (r *testRunner) Get(path string, params ...string) TestRunnerStatus {
	r.t.Helper()

	r.response = r.send(http.MethodGet, r.buildURL(path, params...), "", nil)

	return r
}

func (r *testRunner) Put(input any, path string, params ...string) TestRunnerStatus {
	r.t.Helper()

	r.response = r.send(http.MethodPut, r.buildURL(path, params...), "application/json", bytes.NewReader(Marshal(r.t, input)))

	return r
}

func (r *testRunner) Delete(path string, params ...string) TestRunnerStatus {
	r.t.Helper()

	r.response = r.send(http.MethodDelete, r.buildURL(path, params...), "", nil)

	return r
}

func (r *testRunner) Post(input any, path string, params ...string) TestRunnerStatus {
	r.t.Helper()

	var body io.Reader
	if input != nil {
		body = bytes.NewReader(Marshal(r.t, input))
	}

	r.response = r.send(http.MethodPost, r.buildURL(path, params...), "application/json", body)

	return r
}

// PostForm sends a multipart form, with file as the credentials upload when
// it is not nil.
func (r *testRunner) PostForm(fields map[string]string, file []byte, path string) TestRunnerStatus {
	r.t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			r.t.Fatalf("writing field: %s", err)
		}
	}

	if file != nil {
		part, err := w.CreateFormFile("credentials", "credentials.json")
		if err != nil {
			r.t.Fatalf("creating form file: %s", err)
		}

		_, _ = part.Write(file)
	}

	if err := w.Close(); err != nil {
		r.t.Fatalf("closing form: %s", err)
	}

	r.response = r.send(http.MethodPost, r.buildURL(path), w.FormDataContentType(), buf)

	return r
}

func (r *testRunner) send(method, target, contentType string, body io.Reader) *http.Response {
	r.t.Helper()

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		r.t.Fatalf("creating request: %s", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.t.Fatalf("sending request: %s", err)
	}

	r.t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func NewTester(t *testing.T, s *httptest.Server) *testRunner {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("creating cookie jar: %s", err)
	}

	return &testRunner{
		t:      t,
		s:      s,
		client: &http.Client{Jar: jar},
	}
}

func TestRouter(log zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		log.Error().Str("method", r.Method).Str("path", r.URL.Path).Msg("not found")
		w.WriteHeader(http.StatusNotFound)
	})

	return r
}
