package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
	httpapi "github.com/tablewise/portal/pkg/service/core/api/http"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the conversion service",
	Long: `Log in with email and password. Both can come from the --email and
--password flags, from TABLEWISE_EMAIL and TABLEWISE_PASSWORD, or are
asked for.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds := service.Credentials{
			Email:    viper.GetString("email"),
			Password: viper.GetString("password"),
		}

		in := bufio.NewScanner(cmd.InOrStdin())

		if creds.Email == "" {
			creds.Email = prompt(cmd, in, "Email: ")
		}

		if creds.Password == "" {
			creds.Password = prompt(cmd, in, "Password: ")
		}

		res, err := httpapi.NewAccountAPI(newClient()).Login(cmd.Context(), creds)
		if err != nil {
			return fmt.Errorf("login failed: %s", describe(err))
		}

		path, err := credentialsPath()
		if err != nil {
			return err
		}

		err = saveLogin(path, &storedLogin{
			UserID:      res.UserID,
			Email:       creds.Email,
			AccessToken: res.AccessToken,
		})
		if err != nil {
			return err
		}

		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", creds.Email)

		return nil
	},
}

func prompt(cmd *cobra.Command, in *bufio.Scanner, label string) string {
	fmt.Fprint(cmd.OutOrStdout(), label)

	if !in.Scan() {
		return ""
	}

	return strings.TrimSpace(in.Text())
}

// describe prefers the message the service gave over the error chain.
func describe(err error) string {
	if detail := errs.DetailOf(err); detail != "" {
		return detail
	}

	return err.Error()
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password")

	_ = viper.BindPFlag("email", loginCmd.Flags().Lookup("email"))
	_ = viper.BindPFlag("password", loginCmd.Flags().Lookup("password"))

	rootCmd.AddCommand(loginCmd)
}
