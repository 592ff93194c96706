// Package remotetest runs an in-memory stand in for the schema conversion
// service, for tests of everything that talks to it.
package remotetest

import (
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tablewise/portal/pkg/remote"
)

// Operations that can be made to fail with Fail.
const (
	OpLogin       = "login"
	OpSignup      = "signup"
	OpLogout      = "logout"
	OpList        = "list"
	OpStatus      = "status"
	OpCreate      = "create"
	OpFetch       = "fetch"
	OpUpdateTable = "update_table"
	OpVerifyTable = "verify_table"
)

type failure struct {
	status int
	detail string
}

type user struct {
	id       string
	password string
}

// Server is a fake conversion service. All methods are safe for concurrent
// use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]*user
	tokens   map[string]string
	projects map[string]*remote.Project
	requests []remote.Request
	failures map[string]failure
	calls    map[string]int
}

func New() *Server {
	s := &Server{
		users:    map[string]*user{},
		tokens:   map[string]string{},
		projects: map[string]*remote.Project{},
		failures: map[string]failure{},
		calls:    map[string]int{},
	}

	router := chi.NewRouter()

	router.Post("/users/login", s.login)
	router.Post("/users/signup", s.signup)

	router.Group(func(r chi.Router) {
		r.Use(s.authenticated)

		r.Post("/users/logout", s.logout)
		r.Get("/requests/", s.listRequests)
		r.Post("/requests/", s.createRequest)
		r.Post("/requests/status", s.requestStatus)
		r.Get("/projects/{key}/verification", s.fetchProject)
		r.Put("/projects/{key}/tables/{table}", s.updateTable)
		r.Put("/projects/{key}/tables/{table}/verify", s.verifyTable)
	})

	s.Server = httptest.NewServer(router)

	return s
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.users[email] = &user{id: id, password: password}

	return id
}

// AddProject stores a project under key, and a request in need of
// verification that refers to it.
func (s *Server) AddProject(key, userID string, project *remote.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[key] = project

	status := "need-verification"
	if allVerified(project) {
		status = "verified"
	}

	s.requests = append(s.requests, remote.Request{
		ID:            project.ID,
		Name:          key,
		DBType:        "postgresql",
		UserID:        userID,
		Status:        status,
		Verified:      status == "verified",
		SubmittedDate: "2024-05-01T10:00:00.000Z",
	})
}

// AddRequest stores a request without verification data.
func (s *Server) AddRequest(req remote.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
}

// Project returns a copy of the stored project.
func (s *Server) Project(key string) *remote.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[key]
	if !ok {
		return nil
	}

	data, _ := json.Marshal(p)
	cp := &remote.Project{}
	_ = json.Unmarshal(data, cp)

	return cp
}

func (s *Server) Requests() []remote.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]remote.Request(nil), s.requests...)
}

// Fail makes every following call of op answer with status and detail,
// until Recover is called. An empty detail leaves the body empty.
func (s *Server) Fail(op string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[op] = failure{status: status, detail: detail}
}

func (s *Server) Recover(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.failures, op)
}

// Calls returns how often op was called.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[op]
}

// begin counts the call and writes the configured failure, if any. It
// returns false when the handler should stop.
func (s *Server) begin(w http.ResponseWriter, op string) bool {
	s.mu.Lock()
	s.calls[op]++
	f, failing := s.failures[op]
	s.mu.Unlock()

	if !failing {
		return true
	}

	if f.detail == "" {
		w.WriteHeader(f.status)
		return false
	}

	writeJSON(w, f.status, map[string]string{"detail": f.detail})

	return false
}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(remote.AccessTokenCookie)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}

		s.mu.Lock()
		_, ok := s.tokens[cookie.Value]
		s.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpLogin) {
		return
	}

	var creds remote.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	u, ok := s.users[creds.Email]
	if !ok || u.password != creds.Password {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})

		return
	}

	token := uuid.NewString()
	s.tokens[token] = u.id
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: remote.AccessTokenCookie, Value: token, HttpOnly: true})
	writeJSON(w, http.StatusOK, remote.UserResponse{ID: u.id})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpSignup) {
		return
	}

	var creds remote.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	if _, exists := s.users[creds.Email]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Email already registered"})

		return
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, remote.UserResponse{ID: s.AddUser(creds.Email, creds.Password)})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpLogout) {
		return
	}

	cookie, _ := r.Cookie(remote.AccessTokenCookie)

	s.mu.Lock()
	delete(s.tokens, cookie.Value)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpList) {
		return
	}

	userID := r.URL.Query().Get("userid")

	s.mu.Lock()
	out := remote.Requests{Requests: []remote.Request{}}

	for _, req := range s.requests {
		if req.UserID == userID {
			out.Requests = append(out.Requests, req)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpCreate) {
		return
	}

	var in remote.NewRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	req := remote.Request{
		ID:            uuid.NewString(),
		Name:          in.Name,
		DBType:        in.DBType,
		UserID:        in.UserID,
		Status:        in.Status,
		Description:   in.Description,
		Verified:      in.Verified,
		SubmittedDate: in.SubmittedDate,
	}

	s.AddRequest(req)

	writeJSON(w, http.StatusOK, req)
}

func (s *Server) requestStatus(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpStatus) {
		return
	}

	var in struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	p, ok := s.projects[in.Name]

	status := remote.RequestStatus{RequestID: in.ID, DatabaseName: in.Name}
	if ok {
		status.TotalTables = len(p.Tables)

		for _, t := range p.Tables {
			if t.Verified {
				status.VerifiedTables++
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Request not found"})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) fetchProject(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpFetch) {
		return
	}

	p := s.Project(chi.URLParam(r, "key"))
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Project not found"})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateTable(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpUpdateTable) {
		return
	}

	var update remote.TableUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	table := s.table(chi.URLParam(r, "key"), chi.URLParam(r, "table"))
	if table != nil {
		table.Description = update.Description
		table.Columns = update.Columns
	}
	s.mu.Unlock()

	if table == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Table not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Table updated"})
}

func (s *Server) verifyTable(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, OpVerifyTable) {
		return
	}

	key := chi.URLParam(r, "key")

	s.mu.Lock()
	table := s.table(key, chi.URLParam(r, "table"))
	if table != nil {
		table.Verified = true
		s.syncRequestStatus(key)
	}
	s.mu.Unlock()

	if table == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Table not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Table verified"})
}

func (s *Server) table(key, name string) *remote.Table {
	p, ok := s.projects[key]
	if !ok {
		return nil
	}

	for i := range p.Tables {
		if p.Tables[i].Name == name {
			return &p.Tables[i]
		}
	}

	return nil
}

func (s *Server) syncRequestStatus(key string) {
	if !allVerified(s.projects[key]) {
		return
	}

	for i := range s.requests {
		if s.requests[i].Name == key {
			s.requests[i].Status = "verified"
			s.requests[i].Verified = true
		}
	}
}

func allVerified(p *remote.Project) bool {
	for _, t := range p.Tables {
		if !t.Verified {
			return false
		}
	}

	return true
}

// Token returns a valid access token for the user, as if they had logged
// in.
func (s *Server) Token(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.NewString()
	s.tokens[token] = userID

	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
