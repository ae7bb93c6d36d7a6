package app

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/daemon"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode (insecure cookies, template reload)")
	startCmd.Flags().BoolVar(&noBanner, "no-banner", false, "Do not print the startup banner")

	rootCmd.AddCommand(startCmd)
}

var (
	configPath string // Path to the configuration file

	cfg      config.Config
	devMode  bool
	noBanner bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the GoIdentity-Admin web service",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.ReadConfig(configPath); err != nil {
				return err //nolint:wrapcheck
			}

			if devMode {
				cfg.DevMode = true
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !noBanner {
				banner := figure.NewFigure(cfg.Title, "cybermedium", true)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), banner.String())
			}

			d, err := daemon.New(&cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return d.Start() //nolint:wrapcheck
		},
	}
)
