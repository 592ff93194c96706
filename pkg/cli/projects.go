package cli

import (
	"fmt"
	"io"

	"github.com/docker/cli/cli/command/formatter/tabwriter"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tablewise/portal/pkg/notify"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/service/core"
	httpapi "github.com/tablewise/portal/pkg/service/core/api/http"
	slackapi "github.com/tablewise/portal/pkg/service/core/api/slack"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List your conversion projects and their progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, login, err := authenticated(cmd.Context())
		if err != nil {
			return err
		}

		requests := core.NewRequestService(
			httpapi.NewRequestsAPI(newClient()),
			nil,
			notify.New(notify.DefaultMaxQueued),
			core.NewTeamNotifier(slackapi.NewNoopSlackAPI()),
			newLogger(),
		)

		list, err := requests.ListProjects(ctx, &service.User{ID: login.UserID, Email: login.Email})
		if err != nil {
			return fmt.Errorf("listing projects: %s", describe(err))
		}

		return printProjects(cmd.OutOrStdout(), list)
	},
}

func printProjects(out io.Writer, list *service.ProjectList) error {
	fmt.Fprintf(out, "%s verified  %s processing  %s need verification\n\n",
		color.GreenString("%d", list.Counts.Verified),
		color.BlueString("%d", list.Counts.Processing),
		color.YellowString("%d", list.Counts.NeedVerification),
	)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDATABASE\tSTATUS\tPROGRESS\tSUBMITTED")

	for _, p := range list.Projects {
		progress := "-"
		if p.Progress != nil {
			progress = fmt.Sprintf("%d/%d (%d%%)", p.Progress.VerifiedTables, p.Progress.TotalTables, p.Percent)
		} else if p.Status == service.RequestStatusVerified {
			progress = "100%"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.DBType, p.Status, progress, p.SubmittedDate)
	}

	return w.Flush()
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
