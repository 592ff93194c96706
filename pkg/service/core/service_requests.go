package core

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
)

const (
	MaxProjectNameLength  = 100
	MaxCredentialDocBytes = 1 << 20

	progressConcurrency = 4
	submittedDateLayout = "2006-01-02T15:04:05.000Z07:00"

	submitFailedDetail = "There was an error submitting your request. Please try again."
)

var _ service.RequestService = &requestService{}

type requestService struct {
	api      service.RequestsAPI
	checker  service.CredentialsChecker
	notifier service.Notifier
	team     service.TeamNotifier
	log      zerolog.Logger
}

func (s *requestService) ListProjects(ctx context.Context, user *service.User) (*service.ProjectList, error) {
	const op errs.Op = "requestService.ListProjects"

	if user == nil {
		return nil, errs.E(errs.Unauthenticated, op, errs.Detail("You must be logged in"), "no user")
	}

	requests, err := s.api.ListRequests(ctx, user.ID)
	if err != nil {
		return nil, errs.E(op, errs.Detail("Failed to fetch projects"), err)
	}

	list := &service.ProjectList{
		Projects: make([]service.ProjectSummary, len(requests)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(progressConcurrency)

	for i, req := range requests {
		summary := &list.Projects[i]
		summary.ProjectRequest = req

		switch req.Status {
		case service.RequestStatusVerified:
			list.Counts.Verified++
			summary.Percent = 100
		case service.RequestStatusProcessing:
			list.Counts.Processing++
		case service.RequestStatusFailed:
			list.Counts.Failed++
		case service.RequestStatusNeedVerification:
			list.Counts.NeedVerification++

			req := req
			g.Go(func() error {
				progress, err := s.api.GetProgress(gctx, req.Name, req.ID)
				if err != nil {
					return err
				}

				summary.Progress = progress
				summary.Percent = progress.Percent()

				return nil
			})
		}
	}

	err = g.Wait()
	if err != nil {
		return nil, errs.E(op, errs.Detail("Failed to fetch projects or progress"), err)
	}

	return list, nil
}

func (s *requestService) SubmitProject(ctx context.Context, user *service.User, in *service.NewProject) (*service.ProjectRequest, error) {
	const op errs.Op = "requestService.SubmitProject"

	if user == nil {
		return nil, errs.E(errs.Unauthenticated, op, errs.Detail("User ID is missing"), "no user")
	}

	key := toastKey(ctx, user)

	if len(in.CredentialDoc) == 0 {
		s.notifier.Notify(key, service.Toast{
			Title:       "Missing Credentials",
			Description: "Please upload a credentials document",
			Variant:     service.ToastVariantDestructive,
		})

		return nil, errs.E(errs.Validation, op, errs.Parameter("credentials"), errs.Detail("Please upload a credentials document"), "empty credentials document")
	}

	err := validateNewProject(in)
	if err != nil {
		return nil, s.submitFailed(key, errs.E(errs.Validation, op, errs.Detail(err.Error()), err))
	}

	if s.checker != nil {
		tables, err := s.checker.Check(ctx, in.DBType, in.CredentialDoc)
		if err != nil {
			return nil, s.submitFailed(key, errs.E(op, err))
		}

		s.log.Info().Str("project", in.Name).Int("tables", len(tables)).Msg("credentials checked")
	}

	submitted := in.Submitted
	if submitted.IsZero() {
		submitted = time.Now()
	}

	req, err := s.api.SubmitRequest(ctx, &service.SubmitRequest{
		Name:          in.Name,
		DBType:        in.DBType,
		UserID:        user.ID,
		Status:        service.RequestStatusProcessing,
		Description:   in.Description,
		Verified:      false,
		CredentialDoc: in.CredentialDoc,
		SubmittedDate: submitted.UTC().Format(submittedDateLayout),
	})
	if err != nil {
		return nil, s.submitFailed(key, errs.E(op, err))
	}

	s.notifier.Notify(key, service.Toast{
		Title:       "Schema Uploaded Successfully!",
		Description: "Our team will review your submission and contact you within 24 hours.",
	})

	go s.announceSubmission(user, req)

	return req, nil
}

func (s *requestService) submitFailed(key string, err error) error {
	detail := errs.DetailOf(err)
	if detail == "" {
		detail = submitFailedDetail
	}

	s.notifier.Notify(key, service.Toast{
		Title:       "Submission Failed",
		Description: detail,
		Variant:     service.ToastVariantDestructive,
	})

	return err
}

func (s *requestService) announceSubmission(user *service.User, req *service.ProjectRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), teamNotifyTimeout)
	defer cancel()

	err := s.team.ProjectSubmitted(ctx, user, req)
	if err != nil {
		s.log.Warn().Err(err).Str("project", req.Name).Msg("notifying team about submitted project")
	}
}

func validateNewProject(in *service.NewProject) error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, MaxProjectNameLength)),
		validation.Field(&in.DBType, validation.Required, validation.In(service.DBTypePostgreSQL, service.DBTypeMySQL, service.DBTypeSQLite)),
		validation.Field(&in.CredentialDoc, validation.Required, validation.Length(1, MaxCredentialDocBytes)),
	)
}

// toastKey is the queue toasts for the request end up in, the browser
// session when there is one.
func toastKey(ctx context.Context, user *service.User) string {
	if sess := auth.GetSession(ctx); sess != nil {
		return sess.Token
	}

	return user.ID
}

func NewRequestService(
	api service.RequestsAPI,
	checker service.CredentialsChecker,
	notifier service.Notifier,
	team service.TeamNotifier,
	log zerolog.Logger,
) *requestService {
	return &requestService{
		api:      api,
		checker:  checker,
		notifier: notifier,
		team:     team,
		log:      log,
	}
}
