package api

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/cache"
	"github.com/tablewise/portal/pkg/config/v2"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/service"
	httpapi "github.com/tablewise/portal/pkg/service/core/api/http"
	slackapi "github.com/tablewise/portal/pkg/service/core/api/slack"
	"github.com/tablewise/portal/pkg/service/core/cache/postgres"
)

type Clients struct {
	AccountAPI      service.AccountAPI
	RequestsAPI     service.RequestsAPI
	VerificationAPI service.VerificationAPI
	SlackAPI        service.SlackAPI

	// ProgressCache is the caching layer in front of RequestsAPI.
	ProgressCache interface {
		InvalidateProgress(ctx context.Context, projectKey string)
	}
}

func NewClients(
	cache cache.Cacher,
	fetcher remote.Fetcher,
	cfg config.Config,
	log zerolog.Logger,
) *Clients {
	requestsCache := postgres.NewRequestsCache(httpapi.NewRequestsAPI(fetcher), cache)

	var slackAPI service.SlackAPI = slackapi.NewNoopSlackAPI()
	if cfg.Slack.WebhookURL != "" {
		slackAPI = slackapi.NewSlackAPI(cfg.Slack.WebhookURL, cfg.Slack.Channel, cfg.Slack.Username)
	} else {
		log.Info().Msg("no slack webhook configured, team notifications are disabled")
	}

	return &Clients{
		AccountAPI:      httpapi.NewAccountAPI(fetcher),
		RequestsAPI:     requestsCache,
		VerificationAPI: httpapi.NewVerificationAPI(fetcher),
		SlackAPI:        slackAPI,
		ProgressCache:   requestsCache,
	}
}
