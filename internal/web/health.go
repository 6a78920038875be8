package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Health states.
const (
	HealthUp       = "up"
	HealthDegraded = "degraded"
	HealthDown     = "down"

	healthTimeout = 2 * time.Second
	healthKey     = "health:probe"
)

// Health is the /health response body.
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Storage  string `json:"storage"`
	Time     string `json:"time"`
}

// health reports the database and the key/value storage. A failing
// database is down; a failing storage is degraded. During shutdown the
// endpoint answers 503 so load balancers drain the instance.
func (s *Service) health(c *fiber.Ctx) error {
	h := Health{
		Status:   HealthUp,
		Database: HealthUp,
		Storage:  HealthUp,
		Time:     time.Now().UTC().Format(time.RFC3339),
	}

	if !s.alive.Load() {
		h.Status = HealthDown

		return c.Status(fiber.StatusServiceUnavailable).JSON(h)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := s.pingDB(ctx); err != nil {
		log.Error().Err(err).Msg("health: database ping failed")

		h.Database = HealthDown
		h.Status = HealthDown
	}

	if s.storage != nil {
		if err := s.storage.Set(healthKey, []byte("ok"), time.Minute); err != nil {
			log.Warn().Err(err).Msg("health: storage write failed")

			h.Storage = HealthDown
			if h.Status == HealthUp {
				h.Status = HealthDegraded
			}
		}
	}

	if h.Status == HealthDown {
		return c.Status(fiber.StatusServiceUnavailable).JSON(h)
	}

	return c.JSON(h)
}

func (s *Service) pingDB(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// metricsHandler exposes the default Prometheus registry.
func metricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
