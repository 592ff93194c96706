package slack

import (
	"context"

	slackapi "github.com/slack-go/slack"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
)

type slackAPI struct {
	webhookURL string
	channel    string
	username   string
}

var _ service.SlackAPI = &slackAPI{}

func (a *slackAPI) SendMessage(ctx context.Context, text string) error {
	const op errs.Op = "slackAPI.SendMessage"

	err := slackapi.PostWebhookContext(ctx, a.webhookURL, &slackapi.WebhookMessage{
		Channel:  a.channel,
		Username: a.username,
		Text:     text,
	})
	if err != nil {
		return errs.E(errs.IO, op, err)
	}

	return nil
}

func NewSlackAPI(webhookURL, channel, username string) *slackAPI {
	return &slackAPI{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
	}
}

type noopSlackAPI struct{}

var _ service.SlackAPI = &noopSlackAPI{}

func (noopSlackAPI) SendMessage(context.Context, string) error {
	return nil
}

// NewNoopSlackAPI is used when no webhook is configured.
func NewNoopSlackAPI() service.SlackAPI {
	return &noopSlackAPI{}
}
