package oidc

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/login"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

const (
	// LoginPath is the path to initiate OIDC login.
	LoginPath = handler.RootPath + "auth/oidc/login"

	// CallbackPath is the path for OIDC callback.
	CallbackPath = handler.RootPath + "auth/oidc/callback"

	statePrefix = "oidc-state:"
	stateTTL    = 5 * time.Minute
)

// ErrInvalidState is returned when the callback state is unknown or expired.
var ErrInvalidState = errors.New("invalid or expired state token")

// Service is the OIDC handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	provider *auth.OIDCProvider
}

// Handler is the OIDC handler.
var Handler = Service{}

// Init initializes the OIDC handler. Routes are only registered when the provider is reachable.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, _ *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.provider = nil

	if !cfg.Auth.OIDC.Enabled {
		return
	}

	provider, err := auth.NewOIDCProvider(context.Background(), cfg.Auth.OIDC, cfg.Auth.DefaultRole, db)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize OIDC provider - OIDC authentication will be disabled")
		return
	}

	s.provider = provider

	log.Info().Msg("OIDC authentication provider initialized")

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)
}

// Login initiates the OIDC login flow.
func (s *Service) Login(c *fiber.Ctx) error {
	if s.provider == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "OIDC authentication is not available")
	}

	state, err := auth.GenerateStateToken()
	if err != nil {
		return err
	}

	if err = session.Store.Storage.Set(statePrefix+state, []byte{1}, stateTTL); err != nil {
		return err
	}

	return c.Redirect(s.provider.GetAuthURL(state))
}

// Callback handles the OIDC callback.
func (s *Service) Callback(c *fiber.Ctx) error {
	if s.provider == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "OIDC authentication is not available")
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid callback parameters")
	}

	if err := consumeState(state); err != nil {
		log.Warn().Err(err).Msg("OIDC callback rejected")
		return fiber.NewError(fiber.StatusBadRequest, ErrInvalidState.Error())
	}

	user, idToken, err := s.provider.HandleCallback(c.UserContext(), code)
	if err != nil {
		log.Error().Err(err).Msg("OIDC authentication failed")

		if errors.Is(err, auth.ErrUserAccountDisabled) {
			return fiber.NewError(fiber.StatusForbidden, "Your account has been disabled")
		}

		return fiber.NewError(fiber.StatusUnauthorized, "Authentication failed")
	}

	if err = login.StartSession(c, s.cfg, user, idToken); err != nil {
		return err
	}

	audit.Record(s.db, audit.Entry{
		UserID:       &user.ID,
		Username:     user.Username,
		Action:       "login",
		ResourceType: "user",
		ResourceID:   user.Username,
		Details:      fiber.Map{"method": "oidc", "ip": c.IP()},
	})

	log.Info().Str("username", user.Username).Msg("user logged in via OIDC")

	return c.Redirect(handler.DashboardPath)
}

// EndSessionURL returns the provider logout URL, or "" when OIDC is not in use.
func (s *Service) EndSessionURL(idToken string) string {
	if s.provider == nil {
		return ""
	}

	return s.provider.GetLogoutURL(idToken, s.cfg.Webserver.URL+login.Path)
}

// consumeState accepts a state token once.
func consumeState(state string) error {
	key := statePrefix + state

	v, err := session.Store.Storage.Get(key)
	if err != nil {
		return err
	}

	if len(v) == 0 {
		return ErrInvalidState
	}

	return session.Store.Storage.Delete(key)
}
