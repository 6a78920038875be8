package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dfe-rrdm/rrdm/internal/db"
	"github.com/dfe-rrdm/rrdm/internal/seed"
)

func init() { //nolint: gochecknoinits
	seedCmd.Flags().BoolVar(&seedWithAdmin, "admin", true, "Create the default admin account when no user exists")

	rootCmd.AddCommand(migrateCmd, seedCmd)
}

var (
	seedWithAdmin bool

	migrateCmd = &cobra.Command{
		Use:     "migrate",
		Short:   "Create or update the database schema",
		PreRunE: func(_ *cobra.Command, _ []string) error { return loadConfig() },
		RunE: func(_ *cobra.Command, _ []string) error {
			conn, err := db.Open(&cfg.DB, cfg.DevMode)
			if err != nil {
				return err
			}

			if err = db.Migrate(conn); err != nil {
				return err
			}

			log.Info().Str("engine", cfg.DB.GormEngine).Msg("database schema is up to date")

			return nil
		},
	}

	seedCmd = &cobra.Command{
		Use:     "seed",
		Short:   "Seed workflow phases, statuses, impact areas, urgency levels, roles and permissions",
		PreRunE: func(_ *cobra.Command, _ []string) error { return loadConfig() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := db.Open(&cfg.DB, cfg.DevMode)
			if err != nil {
				return err
			}

			if err = db.Migrate(conn); err != nil {
				return err
			}

			return seed.Run(cmd.Context(), conn, seed.Options{DefaultAdmin: seedWithAdmin})
		},
	}
)
