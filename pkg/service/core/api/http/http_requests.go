package http

import (
	"context"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/service"
)

var _ service.RequestsAPI = &requestsAPI{}

type requestsAPI struct {
	fetcher remote.Fetcher
}

func (a *requestsAPI) ListRequests(ctx context.Context, userID string) ([]service.ProjectRequest, error) {
	const op errs.Op = "requestsAPI.ListRequests"

	res, err := a.fetcher.ListRequests(ctx, userID)
	if err != nil {
		return nil, remoteError(op, errs.Parameter("userid"), err)
	}

	out := make([]service.ProjectRequest, len(res.Requests))
	for i, r := range res.Requests {
		out[i] = requestFromRemote(r)
	}

	return out, nil
}

func (a *requestsAPI) GetProgress(ctx context.Context, name, id string) (*service.Progress, error) {
	const op errs.Op = "requestsAPI.GetProgress"

	res, err := a.fetcher.RequestStatus(ctx, name, id)
	if err != nil {
		return nil, remoteError(op, errs.Parameter("name"), err)
	}

	return &service.Progress{
		RequestID:      res.RequestID,
		DatabaseName:   res.DatabaseName,
		VerifiedTables: res.VerifiedTables,
		TotalTables:    res.TotalTables,
	}, nil
}

func (a *requestsAPI) SubmitRequest(ctx context.Context, req *service.SubmitRequest) (*service.ProjectRequest, error) {
	const op errs.Op = "requestsAPI.SubmitRequest"

	res, err := a.fetcher.CreateRequest(ctx, &remote.NewRequest{
		Name:          req.Name,
		DBType:        req.DBType,
		UserID:        req.UserID,
		Status:        req.Status,
		Description:   req.Description,
		Verified:      req.Verified,
		CredentialDoc: req.CredentialDoc,
		SubmittedDate: req.SubmittedDate,
	})
	if err != nil {
		return nil, remoteError(op, errs.Parameter("name"), err)
	}

	out := requestFromRemote(*res)

	return &out, nil
}

func requestFromRemote(r remote.Request) service.ProjectRequest {
	return service.ProjectRequest{
		ID:            r.ID,
		Name:          r.Name,
		DBType:        r.DBType,
		UserID:        r.UserID,
		Status:        r.Status,
		Description:   r.Description,
		Verified:      r.Verified,
		SubmittedDate: r.SubmittedDate,
	}
}

func NewRequestsAPI(fetcher remote.Fetcher) *requestsAPI {
	return &requestsAPI{
		fetcher: fetcher,
	}
}
