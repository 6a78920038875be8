// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/dfe-rrdm/rrdm/internal/config"
)

var (
	configPath string // path to the configuration directory holding main.toml

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "rrdm",
		Short: "RRDM manages business change requests and reference data",
		Long: `RRDM is a web-based tool for managing business change requests (BCRs),
their 14 phase approval workflow, reference data items and values, funding
requirements, academic years and the release diary.`,
		Args: cobra.OnlyValidArgs,
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc/", "Path to the config directory")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration once for the sub commands.
func loadConfig() error {
	var err error

	cfg, err = config.ReadConfig(configPath)

	return err
}
