// Package db opens the configured database and migrates the schema.
package db

import (
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/dsn"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	gormlogger "github.com/dfe-rrdm/rrdm/internal/logger/adapter/gorm"
)

// ErrNilConfig is returned when Open is called without a database configuration.
var ErrNilConfig = errors.New("database config is nil")

// Dialector returns the gorm dialector for the configured engine.
func Dialector(cfg *config.DB) gorm.Dialector {
	switch cfg.GormEngine {
	case config.EnginePostgres:
		return gormpostgres.Open(dsn.Postgres(cfg))
	case config.EngineSQLite:
		return sqlite.Open(dsn.SQLite(cfg))
	default:
		return gormmysql.Open(dsn.MySQL(cfg))
	}
}

// Open connects to the configured database.
func Open(cfg *config.DB, devMode bool) (*gorm.DB, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	conn, err := gorm.Open(Dialector(cfg), &gorm.Config{
		Logger:         gormlogger.New(cfg.Debug || devMode),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s database", cfg.GormEngine)
	}

	log.Info().Str("engine", cfg.GormEngine).Msg("database connected")

	return conn, nil
}

// AllModels lists every model managed by Migrate, parents before children.
func AllModels() []any {
	return []any{
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.User{},
		&models.Setting{},
		&models.BcrConfig{},
		&models.Submission{},
		&models.AcademicYear{},
		&models.AcademicBreak{},
		&models.Release{},
		&models.Bcr{},
		&models.WorkflowActivity{},
		&models.ReferenceData{},
		&models.ReferenceValue{},
		&models.RestorePoint{},
		&models.ReleaseNote{},
		&models.Funding{},
		&models.FundingHistory{},
		&models.AuditLog{},
	}
}

// Migrate creates or updates all tables.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(AllModels()...); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	log.Info().Int("models", len(AllModels())).Msg("database migrated")

	return nil
}
