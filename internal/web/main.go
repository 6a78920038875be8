package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	fiberlogger "github.com/dfe-rrdm/rrdm/internal/logger/adapter/fiber"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/academicyear"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/admin/audit"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/admin/role"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/admin/settings/sla"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/admin/user"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/api"
	oidchandler "github.com/dfe-rrdm/rrdm/internal/web/handler/auth/oidc"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/bcr"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/dashboard"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/funding"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/impactarea"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/login"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/logout"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/refdata"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/release"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/releasenote"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/submission"
	authmw "github.com/dfe-rrdm/rrdm/internal/web/middleware/auth"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"

	// LocalsFlash holds the flash message popped for the current page.
	LocalsFlash = "Flash"
	// LocalsTitle holds the service name shown in the header.
	LocalsTitle = "ServiceName"
	// LocalsPageQuery holds the query string without "page", ending in "&" when not empty.
	LocalsPageQuery = "PageQuery"

	defaultLoginMax    = 10
	defaultLoginWindow = time.Minute
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	storage      fiber.Storage
	authService  *auth.Service
}

// Start starts the web service on the given address. It returns once the
// server has stopped.
func (s *Service) Start(addr string) error {
	s.alive.Store(true)

	log.Info().Str("addr", addr).Msg("http server listening")

	if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// WaitShutdown blocks until SIGINT, SIGTERM or ctx is done, then drains and
// stops the http server.
func (s *Service) WaitShutdown(ctx context.Context) {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(irqSig)

	select {
	case sig := <-irqSig:
		log.Info().Msgf("shutdown request (signal: %v)", sig)
	case <-ctx.Done():
		log.Info().Msg("shutdown request (context done)")
	}

	// Graceful shutdown for reverse proxies: /health answers 503 while the LB drains.
	if !s.fastShutDown && s.cfg.Webserver.ShutDownTime > 0 {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	s.alive.Store(false)

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates the web service: template engine, middleware and every handler.
// storage backs sessions, flash messages, caches and rate limits.
func New(cfg *config.Config, db *gorm.DB, storage fiber.Storage, wf *workflow.Service) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	if wf == nil {
		panic("workflow service cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize:    8192,
			AppName:           "RRDM",
			CaseSensitive:     true,
			Prefork:           false,
			Immutable:         true,
			Views:             newTemplateEngine(cfg.DevMode),
			PassLocalsToViews: true,
			ErrorHandler:      ErrorHandler(cfg.DevMode),
		},
	)

	service := &Service{
		cfg:         cfg,
		App:         app,
		db:          db,
		storage:     storage,
		authService: auth.NewService(db),
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.DevMode}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: healthPath,
	}))

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:   staticFS(),
				Browse: cfg.Webserver.BrowseStatic,
				MaxAge: 3600, //nolint:mnd
			},
		),
	)

	app.Get(healthPath, service.health)
	app.Get(metricsPath, metricsHandler())

	app.Use(authmw.Middleware)
	app.Use(auth.AddPermissionsToLocals(service.authService))
	app.Use(service.pageLocals)
	app.Use(service.csrf())
	app.Use(login.Path, service.loginLimiter())

	service.initHandlers(app, wf)

	// redirect root to dashboard
	app.Get(handler.RootPath, func(c *fiber.Ctx) error {
		return c.Redirect(handler.DashboardPath)
	})

	app.Use(notFound)

	return service
}

// initHandlers registers every page and API handler. Submission routes
// are registered before the BCR routes they share a prefix with.
func (s *Service) initHandlers(app *fiber.App, wf *workflow.Service) {
	cfg, db, authService := s.cfg, s.db, s.authService

	login.Handler.Init(app, cfg, db, authService)
	logout.Handler.Init(app, cfg, db, authService)
	oidchandler.Handler.Init(app, cfg, db, authService)

	dashboard.Handler.Store = s.storage
	dashboard.Handler.Init(app, cfg, db, authService)

	submission.Handler.Workflow = wf
	submission.Handler.Init(app, cfg, db, authService)

	bcr.Handler.Workflow = wf
	bcr.Handler.Init(app, cfg, db, authService)

	impactarea.Handler.Init(app, cfg, db, authService)
	refdata.Handler.Init(app, cfg, db, authService)
	releasenote.Handler.Init(app, cfg, db, authService)
	funding.Handler.Init(app, cfg, db, authService)
	academicyear.Handler.Init(app, cfg, db, authService)
	release.Handler.Init(app, cfg, db, authService)

	user.Handler.Init(app, cfg, db, authService)
	role.Handler.Init(app, cfg, db, authService)
	audit.Handler.Init(app, cfg, db, authService)
	sla.Handler.Init(app, cfg, db, authService)

	api.Handler.Workflow = wf
	api.Handler.Store = s.storage
	api.Handler.Init(app, cfg, db, authService)
}

// pageLocals exposes the pending flash message and the service title to every view.
func (s *Service) pageLocals(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet && !isAPI(c) {
		if f := session.PopFlash(c); f != nil {
			c.Locals(LocalsFlash, f)
		}
	}

	title := s.cfg.Title
	if title == "" {
		title = "Reference and Release Data Management"
	}

	c.Locals(LocalsTitle, title)
	c.Locals(LocalsPageQuery, pageQuery(c))

	return c.Next()
}

// pageQuery keeps the current filters on pagination links.
func pageQuery(c *fiber.Ctx) string {
	q := url.Values{}

	for k, v := range c.Queries() {
		if k != "page" {
			q.Set(k, v)
		}
	}

	if len(q) == 0 {
		return ""
	}

	return q.Encode() + "&"
}

// csrf protects every form post. The JSON API is authenticated by session
// cookie too but is only reachable with a JSON body, so it is skipped.
func (s *Service) csrf() fiber.Handler {
	return csrf.New(csrf.Config{
		Next:           isAPI,
		KeyLookup:      "form:_csrf",
		CookieName:     "rrdm_csrf",
		CookieSameSite: "Lax",
		CookieSecure:   strings.HasPrefix(s.cfg.Webserver.URL, "https://"),
		CookieHTTPOnly: true,
		Expiration:     s.cfg.Webserver.Session.ExpiryTime,
		ContextKey:     "csrf",
		Storage:        s.storage,
	})
}

// loginLimiter throttles POST /login per client IP.
func (s *Service) loginLimiter() fiber.Handler {
	maxAttempts, window := s.cfg.Webserver.RateLimit.LoginMax, s.cfg.Webserver.RateLimit.LoginWindow
	if maxAttempts <= 0 {
		maxAttempts = defaultLoginMax
	}

	if window <= 0 {
		window = defaultLoginWindow
	}

	return limiter.New(limiter.Config{
		Next:       func(c *fiber.Ctx) bool { return c.Method() != fiber.MethodPost },
		Max:        maxAttempts,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "login:" + c.IP()
		},
		LimitReached: func(_ *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many sign in attempts, try again later")
		},
		Storage: s.storage,
	})
}

func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), api.Path)
}

func newTemplateEngine(devMode bool) *html.Engine {
	engine := html.NewFileSystem(templatesFS(), ".gohtml")

	// in dev mode, use local filesystem for templates
	if devMode {
		engine = html.New("./internal/web/templates", ".gohtml")
		engine.ShouldReload = true

		log.Warn().Msg("dev mode enabled: using local filesystem for templates")
	}

	engine.AddFuncMap(TemplateFuncs())

	return engine
}
