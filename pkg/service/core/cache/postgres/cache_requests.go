package postgres

import (
	"context"
	"fmt"

	"github.com/tablewise/portal/pkg/cache"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
)

var _ service.RequestsAPI = &requestsCache{}

// requestsCache caches verification progress, which the account page asks
// for once per project on every load. Listing and submitting always go to
// the remote service.
type requestsCache struct {
	api   service.RequestsAPI
	cache cache.Cacher
}

func progressKeyPrefix(name string) string {
	return fmt.Sprintf("requests:progress:%s:", name)
}

func (r *requestsCache) ListRequests(ctx context.Context, userID string) ([]service.ProjectRequest, error) {
	const op errs.Op = "requestsCache.ListRequests"

	requests, err := r.api.ListRequests(ctx, userID)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return requests, nil
}

func (r *requestsCache) GetProgress(ctx context.Context, name, id string) (*service.Progress, error) {
	const op errs.Op = "requestsCache.GetProgress"

	key := progressKeyPrefix(name) + id

	progress := &service.Progress{}
	valid := r.cache.Get(ctx, key, progress)
	if valid {
		return progress, nil
	}

	progress, err := r.api.GetProgress(ctx, name, id)
	if err != nil {
		return nil, errs.E(op, err)
	}

	r.cache.Set(ctx, key, progress)

	return progress, nil
}

func (r *requestsCache) SubmitRequest(ctx context.Context, req *service.SubmitRequest) (*service.ProjectRequest, error) {
	const op errs.Op = "requestsCache.SubmitRequest"

	out, err := r.api.SubmitRequest(ctx, req)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return out, nil
}

// InvalidateProgress drops cached progress of the project, called whenever
// one of its tables is verified.
func (r *requestsCache) InvalidateProgress(ctx context.Context, projectKey string) {
	r.cache.Invalidate(ctx, progressKeyPrefix(projectKey))
}

func NewRequestsCache(api service.RequestsAPI, cache cache.Cacher) *requestsCache {
	return &requestsCache{
		api:   api,
		cache: cache,
	}
}
