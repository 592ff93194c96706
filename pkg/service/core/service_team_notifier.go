package core

import (
	"context"
	"fmt"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
)

var _ service.TeamNotifier = &teamNotifier{}

type teamNotifier struct {
	slackAPI service.SlackAPI
}

func (n *teamNotifier) ProjectSubmitted(ctx context.Context, user *service.User, req *service.ProjectRequest) error {
	const op errs.Op = "teamNotifier.ProjectSubmitted"

	text := fmt.Sprintf(":inbox_tray: *%s* submitted project *%s* (%s) for conversion", user.Email, req.Name, req.DBType)
	if req.Description != "" {
		text += "\n>" + req.Description
	}

	err := n.slackAPI.SendMessage(ctx, text)
	if err != nil {
		return errs.E(op, err)
	}

	return nil
}

func (n *teamNotifier) VerificationCompleted(ctx context.Context, user *service.User, project *service.Project) error {
	const op errs.Op = "teamNotifier.VerificationCompleted"

	text := fmt.Sprintf(":white_check_mark: *%s* verified all %d tables of project *%s*", user.Email, len(project.Tables), project.Name)

	err := n.slackAPI.SendMessage(ctx, text)
	if err != nil {
		return errs.E(op, err)
	}

	return nil
}

func NewTeamNotifier(slackAPI service.SlackAPI) *teamNotifier {
	return &teamNotifier{
		slackAPI: slackAPI,
	}
}
