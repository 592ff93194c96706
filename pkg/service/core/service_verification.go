package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/verification"
)

// UnsavedChangesPrompt is returned when navigating away from a dirty edit
// buffer without asking to discard it.
const UnsavedChangesPrompt = "You have unsaved changes. Are you sure you want to navigate away?"

const (
	DefaultIdleTTL        = 30 * time.Minute
	teamNotifyTimeout     = 10 * time.Second
	outcomeOK             = "ok"
	outcomeGatewayFailure = "error"
	outcomeRejected       = "rejected"
)

var _ service.VerificationService = &verificationService{}

// ProgressInvalidator drops cached progress of a project.
type ProgressInvalidator interface {
	InvalidateProgress(ctx context.Context, projectKey string)
}

type sessionKey struct {
	owner   string
	project string
}

type sessionEntry struct {
	session  *verification.Session
	lastUsed time.Time
}

// verificationService keeps one verification.Session per browser session
// and project.
type verificationService struct {
	api              service.VerificationAPI
	notifier         service.Notifier
	team             service.TeamNotifier
	progress         ProgressInvalidator
	saveBeforeVerify bool
	idleTTL          time.Duration
	ops              *prometheus.CounterVec
	log              zerolog.Logger
	now              func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]*sessionEntry
}

func (s *verificationService) Open(ctx context.Context, projectKey string, reload bool) (*service.VerificationState, error) {
	const op errs.Op = "verificationService.Open"

	owner, user, err := ownerFrom(ctx)
	if err != nil {
		return nil, errs.E(op, err)
	}

	key := sessionKey{owner: owner, project: projectKey}

	s.mu.Lock()
	entry, ok := s.sessions[key]
	if !ok {
		entry = &sessionEntry{session: s.newSession(owner, user)}
		s.sessions[key] = entry
	}
	entry.lastUsed = s.now()
	s.mu.Unlock()

	// A session whose last load failed holds no project, opening it again
	// retries the fetch.
	if ok && !reload && (entry.session.Project() != nil || entry.session.Loading()) {
		return entry.session.State(), nil
	}

	err = entry.session.Initialize(ctx, projectKey)
	s.count("fetch", err)

	if err != nil {
		return nil, verificationError(op, "", err)
	}

	return entry.session.State(), nil
}

func (s *verificationService) State(ctx context.Context, projectKey string) (*service.VerificationState, error) {
	const op errs.Op = "verificationService.State"

	sess, err := s.lookup(ctx, projectKey)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return sess.State(), nil
}

func (s *verificationService) EditDescription(ctx context.Context, projectKey, text string) (*service.VerificationState, error) {
	const op errs.Op = "verificationService.EditDescription"

	sess, err := s.lookup(ctx, projectKey)
	if err != nil {
		return nil, errs.E(op, err)
	}

	err = sess.EditDescription(text)
	if err != nil {
		return nil, verificationError(op, "description", err)
	}

	return sess.State(), nil
}

func (s *verificationService) EditColumnDescription(ctx context.Context, projectKey string, index int, text string) (*service.VerificationState, error) {
	const op errs.Op = "verificationService.EditColumnDescription"

	sess, err := s.lookup(ctx, projectKey)
	if err != nil {
		return nil, errs.E(op, err)
	}

	err = sess.EditColumnDescription(index, text)
	if err != nil {
		return nil, verificationError(op, "index", err)
	}

	return sess.State(), nil
}

func (s *verificationService) Save(ctx context.Context, projectKey string) (*service.VerificationState, error) {
	const op errs.Op = "verificationService.Save"

	sess, err := s.lookup(ctx, projectKey)
	if err != nil {
		return nil, errs.E(op, err)
	}

	err = sess.Save(ctx)
	s.count("save", err)

	if err != nil {
		return nil, verificationError(op, "", err)
	}

	return sess.State(), nil
}

func (s *verificationService) Verify(ctx context.Context, projectKey string) (*service.VerificationState, error) {
	const op errs.Op = "verificationService.Verify"

	sess, err := s.lookup(ctx, projectKey)
	if err != nil {
		return nil, errs.E(op, err)
	}

	err = sess.Verify(ctx)
	s.count("verify", err)

	if err != nil {
		return nil, verificationError(op, "", err)
	}

	if s.progress != nil {
		s.progress.InvalidateProgress(ctx, projectKey)
	}

	return sess.State(), nil
}

func (s *verificationService) NavigateTo(ctx context.Context, projectKey string, index int, discard bool) (*service.VerificationState, error) {
	const op errs.Op = "verificationService.NavigateTo"

	sess, err := s.lookup(ctx, projectKey)
	if err != nil {
		return nil, errs.E(op, err)
	}

	if sess.Dirty() && !discard {
		return nil, errs.E(errs.Conflict, op, errs.Parameter("discard"), errs.Detail(UnsavedChangesPrompt), "edit buffer has unsaved changes")
	}

	err = sess.NavigateTo(index)
	if err != nil {
		return nil, verificationError(op, "index", err)
	}

	return sess.State(), nil
}

func (s *verificationService) Close(ctx context.Context, projectKey string) error {
	const op errs.Op = "verificationService.Close"

	owner, _, err := ownerFrom(ctx)
	if err != nil {
		return errs.E(op, err)
	}

	key := sessionKey{owner: owner, project: projectKey}

	s.mu.Lock()
	entry, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		entry.session.Close()
	}

	return nil
}

// CloseAll closes every verification session opened from the given browser
// session, used on logout.
func (s *verificationService) CloseAll(owner string) {
	s.mu.Lock()
	var closing []*verification.Session

	for key, entry := range s.sessions {
		if key.owner == owner {
			closing = append(closing, entry.session)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, sess := range closing {
		sess.Close()
	}
}

// EvictIdle closes sessions that have not been used for longer than the
// idle TTL and returns how many were closed.
func (s *verificationService) EvictIdle(_ context.Context) (int, error) {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var closing []*verification.Session

	for key, entry := range s.sessions {
		if entry.lastUsed.Before(cutoff) {
			closing = append(closing, entry.session)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, sess := range closing {
		sess.Close()
	}

	return len(closing), nil
}

func (s *verificationService) lookup(ctx context.Context, projectKey string) (*verification.Session, error) {
	owner, _, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionKey{owner: owner, project: projectKey}]
	if !ok {
		return nil, errs.E(errs.NotExist, errs.Parameter("projectKey"), errs.Detail("No verification session is open for this project"), "verification session not found")
	}

	entry.lastUsed = s.now()

	return entry.session, nil
}

func (s *verificationService) newSession(owner string, user *service.User) *verification.Session {
	log := s.log.With().Str("owner", user.ID).Logger()

	return verification.New(s.api,
		verification.WithLogger(log),
		verification.WithSaveBeforeVerify(s.saveBeforeVerify),
		verification.WithOnError(func(err *verification.Error) {
			s.notifier.Notify(owner, service.Toast{
				Title:       errorTitle(err.Kind),
				Description: err.Detail,
				Variant:     service.ToastVariantDestructive,
			})
		}),
		verification.WithOnComplete(func(project *service.Project, source verification.CompletionSource) {
			s.notifier.Notify(owner, service.Toast{
				Title:       "Verification Complete!",
				Description: "All tables have been verified. Redirecting...",
			})

			// Loading a project that is already done only shows the toast.
			if source != verification.CompletedByVerify {
				return
			}

			s.ops.WithLabelValues("complete", outcomeOK).Inc()

			go s.announceCompletion(user, project)
		}),
	)
}

func (s *verificationService) announceCompletion(user *service.User, project *service.Project) {
	ctx, cancel := context.WithTimeout(context.Background(), teamNotifyTimeout)
	defer cancel()

	err := s.team.VerificationCompleted(ctx, user, project)
	if err != nil {
		s.log.Warn().Err(err).Str("project", project.Name).Msg("notifying team about completed verification")
	}
}

func (s *verificationService) count(operation string, err error) {
	outcome := outcomeOK

	var e *verification.Error

	switch {
	case err == nil:
	case errors.As(err, &e):
		outcome = outcomeGatewayFailure
	default:
		outcome = outcomeRejected
	}

	s.ops.WithLabelValues(operation, outcome).Inc()
}

func errorTitle(kind verification.ErrorKind) string {
	switch kind {
	case verification.SaveFailed:
		return "Save Failed"
	case verification.VerifyFailed:
		return "Verification Failed"
	}

	return "Error"
}

// verificationError turns session errors into errs errors. Gateway failures
// keep the kind reported by the remote service, and precondition failures
// become client errors.
func verificationError(op errs.Op, param errs.Parameter, err error) error {
	var e *verification.Error
	if errors.As(err, &e) {
		kind := errs.KindOf(e.Err)
		if kind == errs.Other || kind == errs.Internal {
			kind = errs.IO
		}

		return errs.E(kind, op, errs.Detail(e.Detail), err)
	}

	switch {
	case errors.Is(err, verification.ErrColumnIndex), errors.Is(err, verification.ErrTableIndex):
		return errs.E(errs.InvalidRequest, op, param, err)
	case errors.Is(err, verification.ErrNotLoaded),
		errors.Is(err, verification.ErrNoCurrentTable),
		errors.Is(err, verification.ErrReadOnly),
		errors.Is(err, verification.ErrAlreadyVerified),
		errors.Is(err, verification.ErrClosed),
		errors.Is(err, verification.ErrSuperseded):
		return errs.E(errs.Conflict, op, err)
	}

	return errs.E(errs.Internal, op, err)
}

// ownerFrom identifies the browser session a request belongs to.
func ownerFrom(ctx context.Context) (string, *service.User, error) {
	sess := auth.GetSession(ctx)
	if sess == nil {
		return "", nil, errs.E(errs.Unauthenticated, errs.Detail("You must be logged in"), "no session in context")
	}

	return sess.Token, sess.User(), nil
}

type VerificationOption func(*verificationService)

func WithSaveBeforeVerify(enabled bool) VerificationOption {
	return func(s *verificationService) {
		s.saveBeforeVerify = enabled
	}
}

func WithIdleTTL(ttl time.Duration) VerificationOption {
	return func(s *verificationService) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

func WithProgressInvalidator(p ProgressInvalidator) VerificationOption {
	return func(s *verificationService) {
		s.progress = p
	}
}

func WithClock(now func() time.Time) VerificationOption {
	return func(s *verificationService) {
		s.now = now
	}
}

func NewVerificationService(
	api service.VerificationAPI,
	notifier service.Notifier,
	team service.TeamNotifier,
	ops *prometheus.CounterVec,
	log zerolog.Logger,
	opts ...VerificationOption,
) *verificationService {
	s := &verificationService{
		api:      api,
		notifier: notifier,
		team:     team,
		idleTTL:  DefaultIdleTTL,
		ops:      ops,
		log:      log,
		now:      time.Now,
		sessions: map[sessionKey]*sessionEntry{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
