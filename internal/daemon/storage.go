package daemon

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/mysql/v2"
	"github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog/log"

	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/dsn"
)

const (
	storageTable      = "kv_storage"
	storageGCInterval = 10 * time.Second
)

// NewStorage returns the key/value storage for sessions, flash messages,
// caches and rate limits. It lives in the application database for mysql
// and postgres; sqlite keeps it in process memory.
func NewStorage(cfg *config.DB) fiber.Storage {
	switch cfg.GormEngine {
	case config.EnginePostgres:
		log.Info().Str("table", storageTable).Msg("using postgres key/value storage")

		return postgres.New(postgres.Config{
			ConnectionURI: dsn.PostgresURL(cfg),
			Table:         storageTable,
			GCInterval:    storageGCInterval,
		})
	case config.EngineSQLite:
		log.Info().Msg("using in-memory key/value storage")

		return memory.New(memory.Config{GCInterval: storageGCInterval})
	default:
		log.Info().Str("table", storageTable).Msg("using mysql key/value storage")

		return mysql.New(mysql.Config{
			ConnectionURI: dsn.MySQL(cfg),
			Table:         storageTable,
			GCInterval:    storageGCInterval,
		})
	}
}
