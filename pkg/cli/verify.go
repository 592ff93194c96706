package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tablewise/portal/pkg/service/core"
	httpapi "github.com/tablewise/portal/pkg/service/core/api/http"
	"github.com/tablewise/portal/pkg/verification"
)

const verifyHelp = `commands:
  e        edit the table description
  c N      edit the description of column N
  s        save changes
  v        verify the table and move on
  g N      go to table N
  r        reload the project
  q        quit`

var verifyCmd = &cobra.Command{
	Use:   "verify <project>",
	Short: "Review and verify the generated descriptions of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _, err := authenticated(cmd.Context())
		if err != nil {
			return err
		}

		sess := verification.New(
			httpapi.NewVerificationAPI(newClient()),
			verification.WithLogger(newLogger()),
			verification.WithSaveBeforeVerify(viper.GetBool("save_before_verify")),
		)
		defer sess.Close()

		loop := newVerifyLoop(sess, cmd.InOrStdin(), cmd.OutOrStdout(), verification.CompletionRedirectDelay)

		return loop.Run(ctx, args[0])
	},
}

// verifyLoop drives a verification session from line based input.
type verifyLoop struct {
	sess          *verification.Session
	in            *bufio.Scanner
	out           io.Writer
	redirectDelay time.Duration
}

func newVerifyLoop(sess *verification.Session, in io.Reader, out io.Writer, redirectDelay time.Duration) *verifyLoop {
	return &verifyLoop{
		sess:          sess,
		in:            bufio.NewScanner(in),
		out:           out,
		redirectDelay: redirectDelay,
	}
}

func (l *verifyLoop) Run(ctx context.Context, projectKey string) error {
	err := l.sess.Initialize(ctx, projectKey)
	if err != nil {
		return fmt.Errorf("loading project %s: %s", projectKey, describe(err))
	}

	l.render()

	for {
		if l.sess.AllVerified() {
			l.complete(ctx)
			return nil
		}

		fmt.Fprint(l.out, "> ")

		if !l.in.Scan() {
			return l.in.Err()
		}

		quit := l.handle(ctx, strings.TrimSpace(l.in.Text()))
		if quit {
			return nil
		}
	}
}

// handle runs one command line and reports whether the loop should stop.
func (l *verifyLoop) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error

	switch cmd {
	case "":
		return false
	case "e":
		text, ok := l.ask("Description: ")
		if !ok {
			return false
		}

		err = l.sess.EditDescription(text)
	case "c":
		var i int

		i, err = l.index(arg)
		if err != nil {
			break
		}

		text, ok := l.ask(fmt.Sprintf("Column %d description: ", i+1))
		if !ok {
			return false
		}

		err = l.sess.EditColumnDescription(i, text)
	case "s":
		err = l.sess.Save(ctx)
		if err == nil {
			color.New(color.FgGreen).Fprintln(l.out, "Saved")
		}
	case "v":
		err = l.sess.Verify(ctx)
		if err == nil {
			color.New(color.FgGreen).Fprintln(l.out, "Verified")
		}
	case "g":
		var i int

		i, err = l.index(arg)
		if err != nil {
			break
		}

		if l.sess.Dirty() && !l.confirm(core.UnsavedChangesPrompt) {
			return false
		}

		err = l.sess.NavigateTo(i)
	case "r":
		err = l.sess.Initialize(ctx, l.sess.ProjectKey())
	case "q":
		if l.sess.Dirty() && !l.confirm(core.UnsavedChangesPrompt) {
			return false
		}

		return true
	case "h", "?":
		fmt.Fprintln(l.out, verifyHelp)
		return false
	default:
		color.New(color.FgYellow).Fprintf(l.out, "unknown command %q\n", cmd)
		fmt.Fprintln(l.out, verifyHelp)

		return false
	}

	if err != nil {
		l.fail(err)
		return false
	}

	l.render()

	return false
}

func (l *verifyLoop) render() {
	state := l.sess.State()
	if state.Project == nil {
		return
	}

	fmt.Fprintf(l.out, "\n%s  %d%% verified, %d remaining\n",
		color.New(color.Bold).Sprint(state.Project.Name), state.ProgressPercent, state.UnverifiedCount)

	for i, t := range state.Project.Tables {
		marker := " "
		if state.CurrentIndex != nil && *state.CurrentIndex == i {
			marker = ">"
		}

		status := color.YellowString("pending")
		if t.Verified {
			status = color.GreenString("verified")
		}

		fmt.Fprintf(l.out, "%s %2d. %s (%s)\n", marker, i+1, t.Name, status)
	}

	table, ok := l.sess.CurrentTable()
	if !ok {
		return
	}

	dirty := ""
	if state.Buffer.Dirty {
		dirty = color.YellowString(" [unsaved]")
	}

	fmt.Fprintf(l.out, "\n%s%s\n  %s\n", color.CyanString(table.Name), dirty, state.Buffer.Description)

	for i, c := range state.Buffer.Columns {
		fmt.Fprintf(l.out, "  %2d. %s: %s\n", i+1, c.Name, c.Description)
	}
}

func (l *verifyLoop) complete(ctx context.Context) {
	project := l.sess.Project()

	color.New(color.FgGreen, color.Bold).Fprintln(l.out, "Verification Complete!")
	fmt.Fprintf(l.out, "All %d tables of %s have been verified.\n", len(project.Tables), project.Name)

	select {
	case <-ctx.Done():
	case <-time.After(l.redirectDelay):
	}
}

func (l *verifyLoop) fail(err error) {
	color.New(color.FgRed).Fprintf(l.out, "%s\n", describe(err))
}

// ask reads one answer line, ok is false once the input is exhausted.
func (l *verifyLoop) ask(label string) (string, bool) {
	fmt.Fprint(l.out, label)

	if !l.in.Scan() {
		return "", false
	}

	return l.in.Text(), true
}

func (l *verifyLoop) confirm(question string) bool {
	answer, _ := l.ask(question + " [y/N] ")
	answer = strings.ToLower(strings.TrimSpace(answer))

	return answer == "y" || answer == "yes"
}

// index parses a 1-based position typed by the user.
func (l *verifyLoop) index(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", arg)
	}

	return n - 1, nil
}

func init() {
	verifyCmd.Flags().Bool("save-before-verify", false, "save unsaved edits before verifying a table")
	_ = viper.BindPFlag("save_before_verify", verifyCmd.Flags().Lookup("save-before-verify"))

	rootCmd.AddCommand(verifyCmd)
}
