// Package cli is the terminal client of the portal. It talks to the
// conversion service directly and runs verification sessions in the
// terminal.
package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tablewise/portal/pkg/remote"
)

const (
	defaultAPIURL  = "http://localhost:8000"
	defaultTimeout = 30 * time.Second
	envPrefix      = "TABLEWISE"
)

var (
	cfgFile string
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "tablewise",
	Short: "Review generated schema descriptions from the terminal",
	Long: `
tablewise talks to the schema conversion service. Log in once, list your
projects and verify the generated table and column descriptions of a
project one table at a time.`,
	SilenceUsage: true,
}

func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./tablewise.yaml)")
	rootCmd.PersistentFlags().String("api-url", defaultAPIURL, "URL of the conversion service")
	rootCmd.PersistentFlags().Bool("debug", false, "log outgoing calls")

	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("tablewise")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("timeout_seconds", int(defaultTimeout/time.Second))
	viper.SetDefault("save_before_verify", false)

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			color.Yellow("could not read config file: %v", err)
		}
	}
}

func newClient() *remote.Client {
	return remote.New(viper.GetString("api_url"), &http.Client{
		Timeout: time.Duration(viper.GetInt("timeout_seconds")) * time.Second,
	})
}

func newLogger() zerolog.Logger {
	if !viper.GetBool("debug") {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
