package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/db"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

func init() { //nolint: gochecknoinits
	userCreateCmd.Flags().StringVar(&newUser.username, "username", "", "Username (required)")
	userCreateCmd.Flags().StringVar(&newUser.email, "email", "", "E-mail address (required)")
	userCreateCmd.Flags().StringVar(&newUser.password, "password", "", "Password (required)")
	userCreateCmd.Flags().StringVar(&newUser.firstName, "first-name", "", "First name")
	userCreateCmd.Flags().StringVar(&newUser.lastName, "last-name", "", "Last name")
	userCreateCmd.Flags().StringVar(&newUser.role, "role", models.RoleViewer, "Role name (admin, editor, viewer)")

	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

var (
	newUser struct {
		username, email, password, firstName, lastName, role string
	}

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage local user accounts",
	}

	userCreateCmd = &cobra.Command{
		Use:     "create",
		Short:   "Create a local user account",
		PreRunE: func(_ *cobra.Command, _ []string) error { return loadConfig() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := db.Open(&cfg.DB, cfg.DevMode)
			if err != nil {
				return err
			}

			var role models.Role
			if err = conn.Where(models.WhereNameIs, newUser.role).First(&role).Error; err != nil {
				return fmt.Errorf("role %q not found, run the seed command first: %w", newUser.role, err)
			}

			user, err := auth.NewLocalProvider(conn).CreateUser(
				newUser.username, newUser.email, newUser.password, newUser.firstName, newUser.lastName, role.ID,
			)
			if err != nil {
				return err
			}

			cmd.Printf("created user %s (id %d) with role %s\n", user.Username, user.ID, role.Name)

			return nil
		},
	}
)
