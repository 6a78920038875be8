// Package dashboard provides the landing page with the headline counters.
package dashboard

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/cache"
	"github.com/dfe-rrdm/rrdm/internal/config"
	bcrs "github.com/dfe-rrdm/rrdm/internal/db/controller/bcr"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/refdata"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/releasenote"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/submission"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

const (
	// Path is the path to the dashboard page.
	Path = handler.DashboardPath

	// TemplateName is the name of the dashboard template.
	TemplateName = "dashboard/dashboard"

	// CacheTTL is how long counters are served from the cache unless
	// Workflow.CounterCacheTTL is set.
	CacheTTL = 60 * time.Second

	cachePrefix = "dashboard:"
	countersKey = "counters"
	recentCount = 5
)

// Counters are the headline numbers on the dashboard.
type Counters struct {
	Submissions  map[string]int64 `json:"submissions"`
	BcrsByPhase  []int64          `json:"bcrsByPhase"`
	OpenBcrs     int64            `json:"openBcrs"`
	Items        int64            `json:"items"`
	ReleaseNotes int64            `json:"releaseNotes"`
}

// Service is the dashboard handler service.
type Service struct {
	handler.Service
	cfg   *config.Config
	db    *gorm.DB
	cache *cache.JSON

	// Store backs the counter cache. Set before Init; nil disables caching.
	Store fiber.Storage
}

// Handler is the dashboard handler.
var Handler = Service{}

// Init initializes the dashboard handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	ttl := cfg.Workflow.CounterCacheTTL
	if ttl <= 0 {
		ttl = CacheTTL
	}

	s.cache = cache.New(s.Store, cachePrefix, ttl)

	app.Get(Path, auth.RequirePermission(authService, auth.PermDashboardView), s.Get)
}

// Counters returns the dashboard counters, cached for CacheTTL.
func (s *Service) Counters() (Counters, error) {
	return cache.Remember(s.cache, countersKey, s.count)
}

func (s *Service) count() (Counters, error) {
	var (
		out Counters
		err error
	)

	if out.Submissions, err = submission.CountByStatus(s.db); err != nil {
		return out, err
	}

	if out.BcrsByPhase, err = bcrs.CountByPhase(s.db); err != nil {
		return out, err
	}

	for phase, n := range out.BcrsByPhase {
		if phase > 0 {
			out.OpenBcrs += n
		}
	}

	if out.Items, err = refdata.Count(s.db); err != nil {
		return out, err
	}

	if out.ReleaseNotes, err = releasenote.Count(s.db); err != nil {
		return out, err
	}

	return out, nil
}

// Get renders the dashboard.
func (s *Service) Get(c *fiber.Ctx) error {
	counters, err := s.Counters()
	if err != nil {
		log.Error().Err(err).Msg("failed to load dashboard counters")

		return err
	}

	recent, err := bcrs.Recent(s.db, recentCount)
	if err != nil {
		return err
	}

	nav := navigation.NewContext("Dashboard", "dashboard", "dashboard").
		AddBreadcrumb("Home", Path, true)

	return c.Render(TemplateName, fiber.Map{
		"Navigation": nav,
		"Counters":   counters,
		"Phases":     workflow.Phases,
		"Recent":     recent,
	}, handler.BaseLayout)
}
