// Package verification implements the review workflow for the generated
// table and column descriptions of one project.
//
// A Session holds the project, the table under review and an edit buffer
// for it. Edits stay in the buffer until Save commits them through the
// gateway. Verify approves the current table and moves forward to the next
// table that still needs review. When every table is verified the session
// fires its completion callback, once per transition.
package verification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/service"
)

// CompletionRedirectDelay is how long a host should show the completed
// state before leaving the session.
const CompletionRedirectDelay = 1500 * time.Millisecond

const noTable = -1

type Option func(*Session)

// WithSaveBeforeVerify makes Verify commit a dirty buffer before approving
// the table. Without it unsaved edits are discarded by Verify.
func WithSaveBeforeVerify(enabled bool) Option {
	return func(s *Session) {
		s.saveBeforeVerify = enabled
	}
}

// CompletionSource tells how a session came to be fully verified.
type CompletionSource int

const (
	// CompletedByVerify is the transition made by verifying the last table.
	CompletedByVerify CompletionSource = iota
	// CompletedOnLoad means the project was already fully verified when it
	// was loaded.
	CompletedOnLoad
)

func (c CompletionSource) String() string {
	if c == CompletedOnLoad {
		return "load"
	}

	return "verify"
}

// WithOnComplete sets the callback fired when every table becomes verified.
// It receives a copy of the project and what caused the completion.
func WithOnComplete(fn func(project *service.Project, source CompletionSource)) Option {
	return func(s *Session) {
		s.onComplete = fn
	}
}

// WithOnError sets the callback fired for every gateway failure.
func WithOnError(fn func(err *Error)) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

type Session struct {
	api service.VerificationAPI
	log zerolog.Logger

	saveBeforeVerify bool
	onComplete       func(project *service.Project, source CompletionSource)
	onError          func(err *Error)

	mu         sync.Mutex
	key        string
	project    *service.Project
	current    int
	buffer     service.EditBuffer
	loading    bool
	saving     bool
	err        *Error
	completed  bool
	closed     bool
	generation uint64
}

func New(api service.VerificationAPI, opts ...Option) *Session {
	s := &Session{
		api:     api,
		log:     zerolog.Nop(),
		current: noTable,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Initialize loads the project and selects the first table that is not
// verified, or the first table when all of them are.
func (s *Session) Initialize(ctx context.Context, projectKey string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	s.generation++
	gen := s.generation
	s.key = projectKey
	s.loading = true
	s.mu.Unlock()

	project, err := s.api.FetchProject(ctx, projectKey)
	if err == nil && project == nil {
		err = errEmptyProject
	}

	s.mu.Lock()

	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return s.discarded()
	}

	s.loading = false

	if err != nil {
		e := newError(FetchFailed, err)

		s.project = nil
		s.current = noTable
		s.buffer = service.EditBuffer{}
		s.err = e
		s.mu.Unlock()

		s.log.Debug().Err(err).Str("project", projectKey).Msg("fetching project")
		s.fireError(e)

		return e
	}

	s.project = project.Copy()
	s.err = nil
	s.completed = false
	s.current = firstUnverified(s.project.Tables)
	s.seedBuffer()

	done := s.checkCompletion()
	s.mu.Unlock()

	s.fireComplete(done, CompletedOnLoad)

	return nil
}

// EditDescription replaces the table description in the edit buffer.
func (s *Session) EditDescription(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return err
	}

	s.buffer.Description = text
	s.buffer.Dirty = true

	return nil
}

// EditColumnDescription replaces the description of column i in the edit
// buffer.
func (s *Session) EditColumnDescription(i int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return err
	}

	if i < 0 || i >= len(s.buffer.Columns) {
		return ErrColumnIndex
	}

	s.buffer.Columns[i].Description = text
	s.buffer.Dirty = true

	return nil
}

// Save commits the edit buffer of the current table through the gateway.
// On failure the buffer and the project are left as they were.
func (s *Session) Save(ctx context.Context) error {
	return s.save(ctx)
}

func (s *Session) save(ctx context.Context) error {
	s.mu.Lock()

	if err := s.requireCurrent(); err != nil {
		s.mu.Unlock()
		return err
	}

	gen := s.generation
	idx := s.current
	key := s.key
	name := s.project.Tables[idx].Name
	description := s.buffer.Description
	columns := service.CopyColumns(s.buffer.Columns)
	s.saving = true
	s.mu.Unlock()

	err := s.api.SaveTable(ctx, key, name, description, columns)

	s.mu.Lock()
	s.saving = false

	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return s.discarded()
	}

	if err != nil {
		e := newError(SaveFailed, err)
		s.err = e
		s.mu.Unlock()

		s.log.Debug().Err(err).Str("project", key).Str("table", name).Msg("saving table")
		s.fireError(e)

		return e
	}

	table := &s.project.Tables[idx]
	table.Description = description
	table.Columns = service.CopyColumns(columns)
	s.err = nil

	if s.current == idx && s.buffer.Description == description && equalColumns(s.buffer.Columns, columns) {
		s.buffer.Dirty = false
	}

	s.mu.Unlock()

	return nil
}

// Verify approves the current table and moves to the next unverified table
// after it. The scan never wraps around: when nothing later needs review
// the selection stays where it is.
func (s *Session) Verify(ctx context.Context) error {
	s.mu.Lock()

	if err := s.requireCurrent(); err != nil {
		s.mu.Unlock()
		return err
	}

	if s.project.Tables[s.current].Verified {
		s.mu.Unlock()
		return ErrAlreadyVerified
	}

	dirty := s.buffer.Dirty
	s.mu.Unlock()

	if s.saveBeforeVerify && dirty {
		if err := s.save(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()

	if err := s.requireCurrent(); err != nil {
		s.mu.Unlock()
		return err
	}

	gen := s.generation
	idx := s.current
	key := s.key
	name := s.project.Tables[idx].Name
	s.saving = true
	s.mu.Unlock()

	err := s.api.VerifyTable(ctx, key, name)

	s.mu.Lock()
	s.saving = false

	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return s.discarded()
	}

	if err != nil {
		e := newError(VerifyFailed, err)
		s.err = e
		s.mu.Unlock()

		s.log.Debug().Err(err).Str("project", key).Str("table", name).Msg("verifying table")
		s.fireError(e)

		return e
	}

	s.project.Tables[idx].Verified = true
	s.err = nil

	if s.current == idx {
		if next := nextUnverified(s.project.Tables, idx); next != noTable {
			s.current = next
		}

		s.seedBuffer()
	}

	done := s.checkCompletion()
	s.mu.Unlock()

	s.fireComplete(done, CompletedByVerify)

	return nil
}

// NavigateTo selects table i and reseeds the buffer from it, dropping any
// unsaved edits. Hosts check Dirty first and ask before calling it.
func (s *Session) NavigateTo(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.project == nil {
		return ErrNotLoaded
	}

	if i < 0 || i >= len(s.project.Tables) {
		return ErrTableIndex
	}

	s.current = i
	s.seedBuffer()

	return nil
}

// Close detaches the session from its host. Results of gateway calls still
// in flight are discarded when they arrive.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.generation++
	s.loading = false
	s.saving = false
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *Session) ProjectKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.key
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buffer.Dirty
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading
}

func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saving
}

// Err returns the last gateway failure, or nil.
func (s *Session) Err() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// CurrentIndex returns the selected table, or false when there is none.
func (s *Session) CurrentIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current, s.current != noTable
}

// CurrentTable returns a copy of the selected table.
func (s *Session) CurrentTable() (service.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.project == nil || s.current == noTable {
		return service.Table{}, false
	}

	return s.project.Tables[s.current].Copy(), true
}

// Buffer returns a copy of the edit buffer.
func (s *Session) Buffer() service.EditBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyBuffer(s.buffer)
}

// Project returns a copy of the loaded project, or nil.
func (s *Session) Project() *service.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.project.Copy()
}

func (s *Session) UnverifiedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unverifiedCount()
}

// ProgressPercent is the rounded share of verified tables, 0 without
// tables.
func (s *Session) ProgressPercent() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.progressPercent()
}

func (s *Session) AllVerified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.allVerified()
}

func (s *Session) State() *service.VerificationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &service.VerificationState{
		ProjectKey:      s.key,
		Project:         s.project.Copy(),
		Buffer:          copyBuffer(s.buffer),
		Loading:         s.loading,
		Saving:          s.saving,
		UnverifiedCount: s.unverifiedCount(),
		ProgressPercent: s.progressPercent(),
		AllVerified:     s.allVerified(),
		Completed:       s.completed,
	}

	if s.current != noTable {
		idx := s.current
		state.CurrentIndex = &idx
	}

	if s.err != nil {
		state.Error = &service.VerificationError{
			Kind:   string(s.err.Kind),
			Detail: s.err.Detail,
		}
	}

	if state.AllVerified {
		state.RedirectAfterMs = int(CompletionRedirectDelay / time.Millisecond)
	}

	return state
}

func (s *Session) requireCurrent() error {
	if s.closed {
		return ErrClosed
	}

	if s.project == nil {
		return ErrNotLoaded
	}

	if s.current == noTable {
		return ErrNoCurrentTable
	}

	return nil
}

func (s *Session) requireEditable() error {
	if err := s.requireCurrent(); err != nil {
		return err
	}

	if s.project.Tables[s.current].Verified {
		return ErrReadOnly
	}

	return nil
}

func (s *Session) seedBuffer() {
	if s.project == nil || s.current == noTable {
		s.buffer = service.EditBuffer{}
		return
	}

	table := s.project.Tables[s.current]
	s.buffer = service.EditBuffer{
		Description: table.Description,
		Columns:     service.CopyColumns(table.Columns),
	}
}

// checkCompletion reports whether the session just became fully verified.
func (s *Session) checkCompletion() *service.Project {
	if s.completed || !s.allVerified() {
		return nil
	}

	s.completed = true

	return s.project.Copy()
}

func (s *Session) fireComplete(project *service.Project, source CompletionSource) {
	if project == nil || s.onComplete == nil {
		return
	}

	s.onComplete(project, source)
}

func (s *Session) fireError(err *Error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Session) discarded() error {
	if s.closed {
		return ErrClosed
	}

	return ErrSuperseded
}

func (s *Session) unverifiedCount() int {
	if s.project == nil {
		return 0
	}

	n := 0

	for _, t := range s.project.Tables {
		if !t.Verified {
			n++
		}
	}

	return n
}

func (s *Session) progressPercent() int {
	if s.project == nil {
		return 0
	}

	total := len(s.project.Tables)

	return service.Percent(total-s.unverifiedCount(), total)
}

func (s *Session) allVerified() bool {
	return s.project != nil && len(s.project.Tables) > 0 && s.unverifiedCount() == 0
}

func firstUnverified(tables []service.Table) int {
	for i, t := range tables {
		if !t.Verified {
			return i
		}
	}

	if len(tables) > 0 {
		return 0
	}

	return noTable
}

func nextUnverified(tables []service.Table, after int) int {
	for i := after + 1; i < len(tables); i++ {
		if !tables[i].Verified {
			return i
		}
	}

	return noTable
}

func copyBuffer(b service.EditBuffer) service.EditBuffer {
	b.Columns = service.CopyColumns(b.Columns)

	return b
}

func equalColumns(a, b []service.Column) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
