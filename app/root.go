// Package app implements the main application commands.
package app

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() { //nolint: gochecknoinits
	cobra.OnInitialize(loadDotEnv)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Directory of main.toml (default ./etc/)")
}

var rootCmd = &cobra.Command{
	Use:   "go-identity-admin",
	Short: "GoIdentity-Admin is a web console for an identity backend",
	Long: `GoIdentity-Admin is a server rendered admin console in front of an identity REST API.
It owns the browser session cookies, proxies user, role and group management
and refreshes expired sessions transparently.`,
	Args:          cobra.OnlyValidArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadDotEnv exports a .env file of the working directory, it is optional.
func loadDotEnv() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded environment from .env")
	}
}
