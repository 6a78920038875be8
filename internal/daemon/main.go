// Package daemon wires the database, storage, workflow and web service
// together and runs them until shutdown.
package daemon

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db"
	"github.com/dfe-rrdm/rrdm/internal/seed"
	"github.com/dfe-rrdm/rrdm/internal/trello"
	"github.com/dfe-rrdm/rrdm/internal/web"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

// ErrNilConfig is returned by New without a configuration.
var ErrNilConfig = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	db         *gorm.DB
	storage    fiber.Storage
	webService *web.Service
	updater    *StatusUpdater
}

// New opens and migrates the database, seeds the lookup data, selects the
// key/value storage and builds the web service.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	conn, err := db.Open(&cfg.DB, cfg.DevMode)
	if err != nil {
		return nil, err
	}

	if err = db.Migrate(conn); err != nil {
		return nil, err
	}

	if err = seed.Run(ctx, conn, seed.Options{DefaultAdmin: true}); err != nil {
		return nil, errors.Wrap(err, "failed to seed database")
	}

	storage := NewStorage(&cfg.DB)
	session.Init(storage)

	var cards workflow.CardTracker
	if cfg.Trello.Enabled {
		cards = trello.New(cfg.Trello)

		log.Info().Str("list", cfg.Trello.ListID).Msg("trello cards enabled")
	}

	wf := workflow.NewService(conn, cards)

	return &Daemon{
		cfg:        cfg,
		db:         conn,
		storage:    storage,
		webService: web.New(cfg, conn, storage, wf),
		updater:    NewStatusUpdater(conn, cfg.Workflow.StatusUpdateInterval),
	}, nil
}

// Start runs the web service and the academic year status updater until a
// signal arrives or ctx is done, then releases the storage and database.
func (d *Daemon) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)

	g.Go(func() error {
		return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
	})

	g.Go(func() error {
		d.webService.WaitShutdown(gctx)
		stop()

		return nil
	})

	g.Go(func() error {
		return d.updater.Run(runCtx)
	})

	err := g.Wait()
	stop()

	d.close()

	return err
}

func (d *Daemon) close() {
	if err := d.storage.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close storage")
	}

	if sqlDB, err := d.db.DB(); err == nil {
		if err = sqlDB.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
