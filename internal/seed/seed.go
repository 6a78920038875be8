// Package seed loads the base data every installation needs: permissions,
// roles, workflow phases and statuses, urgency levels, impact areas and an
// initial admin account.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dfe-rrdm/rrdm/internal/db/controller/bcrconfig"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

const (
	// DefaultAdminUser is the username of the account created on an empty database.
	DefaultAdminUser = "admin"
	// DefaultAdminPassword must be changed after the first login.
	DefaultAdminPassword = "changeme"

	allPermissions = "*"
)

//go:embed seed.yaml
var rawData []byte

// Data is the content of the embedded seed file.
type Data struct {
	Permissions []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"permissions"`
	Roles []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
	ImpactAreas []struct {
		Name        string `yaml:"name"`
		Order       int    `yaml:"order"`
		Description string `yaml:"description"`
	} `yaml:"impactAreas"`
}

// Options tune a seed run.
type Options struct {
	DefaultAdmin bool // create admin/changeme when the users table is empty
}

// Load parses the embedded seed file.
func Load() (*Data, error) {
	d := new(Data)
	if err := yaml.Unmarshal(rawData, d); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}

	return d, nil
}

// Run seeds the database. Every step is idempotent.
func Run(ctx context.Context, db *gorm.DB, opts Options) error {
	data, err := Load()
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := seedPermissions(tx, data); err != nil {
			return err
		}

		if err := seedRoles(tx, data); err != nil {
			return err
		}

		if err := seedConfig(tx, data); err != nil {
			return err
		}

		if opts.DefaultAdmin {
			return seedAdmin(tx)
		}

		return nil
	})
}

func seedPermissions(tx *gorm.DB, data *Data) error {
	for _, p := range data.Permissions {
		resource, action, _ := strings.Cut(p.Name, ".")
		row := models.Permission{
			Name:        p.Name,
			Resource:    resource,
			Action:      action,
			Description: p.Description,
		}

		if err := tx.Where(models.WhereNameIs, p.Name).
			Assign(models.Permission{Description: p.Description}).
			FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("seed permission %s: %w", p.Name, err)
		}
	}

	return nil
}

func seedRoles(tx *gorm.DB, data *Data) error {
	var perms []models.Permission
	if err := tx.Find(&perms).Error; err != nil {
		return err
	}

	byName := make(map[string]models.Permission, len(perms))
	for _, p := range perms {
		byName[p.Name] = p
	}

	for _, r := range data.Roles {
		role := models.Role{Name: r.Name, Description: r.Description, IsSystem: true}
		if err := tx.Where(models.WhereNameIs, r.Name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}

		grants := make([]models.Permission, 0, len(r.Permissions))

		for _, name := range r.Permissions {
			if name == allPermissions {
				grants = perms

				break
			}

			p, ok := byName[name]
			if !ok {
				return fmt.Errorf("role %s: unknown permission %q", r.Name, name)
			}

			grants = append(grants, p)
		}

		if err := tx.Model(&role).Association("Permissions").Replace(grants); err != nil {
			return fmt.Errorf("seed role %s permissions: %w", r.Name, err)
		}
	}

	return nil
}

func seedConfig(tx *gorm.DB, data *Data) error {
	rows := workflow.ConfigRows()

	// phases, statuses and urgencies follow the code
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "type"}, {Name: "value"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "display_order", "color", "phase_value", "status_type", "description",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed workflow config: %w", err)
	}

	areas := make([]models.BcrConfig, 0, len(data.ImpactAreas))
	for _, a := range data.ImpactAreas {
		areas = append(areas, models.BcrConfig{
			Type:         models.ConfigTypeImpactArea,
			Name:         a.Name,
			Value:        bcrconfig.ImpactAreaValue(a.Name),
			DisplayOrder: a.Order,
			Description:  a.Description,
		})
	}

	// impact areas are owned by admins once created
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&areas).Error; err != nil {
		return fmt.Errorf("seed impact areas: %w", err)
	}

	log.Info().Int("workflow", len(rows)).Int("impact_areas", len(areas)).Msg("bcr configuration seeded")

	return nil
}

func seedAdmin(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	var role models.Role
	if err := tx.Where(models.WhereNameIs, models.RoleAdmin).First(&role).Error; err != nil {
		return fmt.Errorf("load admin role: %w", err)
	}

	admin := models.User{
		Active:     true,
		Username:   DefaultAdminUser,
		Email:      "admin@localhost",
		Password:   models.HashPassword(DefaultAdminPassword),
		FirstName:  "RRDM",
		LastName:   "Administrator",
		RoleID:     role.ID,
		AuthSource: models.AuthSourceLocal,
	}

	if err := tx.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	log.Warn().Str("username", DefaultAdminUser).Msg("default admin created, change its password")

	return nil
}
