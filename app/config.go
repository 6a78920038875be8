package app

import (
	"github.com/spf13/cobra"

	"github.com/dfe-rrdm/rrdm/internal/config"
)

func init() { //nolint: gochecknoinits
	configDumpCmd.Flags().BoolVar(&dumpAsJSON, "json", false, "Dump as JSON instead of TOML")

	configCmd.AddCommand(configDumpCmd)
	rootCmd.AddCommand(configCmd)
}

var (
	dumpAsJSON bool

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	configDumpCmd = &cobra.Command{
		Use:     "dump",
		Short:   "Print the merged configuration (file and RRDM_CONFIG_JSON override)",
		PreRunE: func(_ *cobra.Command, _ []string) error { return loadConfig() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				out string
				err error
			)

			if dumpAsJSON {
				out, err = config.DumpConfigJSON(&cfg)
			} else {
				out, err = config.DumpConfig(&cfg)
			}

			if err != nil {
				return err
			}

			cmd.Print(out)

			return nil
		},
	}
)
