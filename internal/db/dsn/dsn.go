// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"strings"

	"github.com/dfe-rrdm/rrdm/internal/config"
)

// Create builds the Data Source Name for the configured engine.
func Create(dbCfg *config.DB) string {
	switch dbCfg.GormEngine {
	case config.EnginePostgres:
		return Postgres(dbCfg)
	case config.EngineSQLite:
		return SQLite(dbCfg)
	default:
		return MySQL(dbCfg)
	}
}

// MySQL builds a go-sql-driver DSN.
func MySQL(dbCfg *config.DB) string {
	extras := dbCfg.Extras
	if extras == "" {
		extras = "charset=utf8mb4&parseTime=True&loc=UTC"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.Name,
		extras,
	)
}

// Postgres builds a key/value DSN understood by pgx.
func Postgres(dbCfg *config.DB) string {
	out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Name,
	)

	if dbCfg.Extras != "" {
		out += " " + dbCfg.Extras
	}

	return out
}

// PostgresURL builds a postgres:// connection URL, as used by the session storage.
func PostgresURL(dbCfg *config.DB) string {
	out := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.Name,
	)

	if dbCfg.Extras != "" {
		out += "?" + strings.ReplaceAll(dbCfg.Extras, " ", "&")
	}

	return out
}

// SQLite returns the database file path, defaulting to an in-memory database.
func SQLite(dbCfg *config.DB) string {
	if dbCfg.Path == "" {
		return "file::memory:?cache=shared"
	}

	if dbCfg.Extras != "" {
		return dbCfg.Path + "?" + dbCfg.Extras
	}

	return dbCfg.Path
}
