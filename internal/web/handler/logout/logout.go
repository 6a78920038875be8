// Package logout ends user sessions.
package logout

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/auth/oidc"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/login"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

// Path is the logout route.
const Path = handler.RootPath + "logout"

// Service is the logout handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, _ *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	// outside the session check, a stale cookie must still be able to log out
	app.Get(Path, s.Logout)
	app.Post(Path, s.Logout)
}

// Logout clears the session and, for OIDC logins, ends the provider session too.
func (s *Service) Logout(c *fiber.Ctx) error {
	var idToken string

	sessionID := c.Cookies(session.CookieName)
	if sessionID != "" {
		if data, err := session.Current(c); err == nil {
			idToken = data.IDToken

			audit.Record(s.db, audit.Entry{
				UserID:       &data.User.ID,
				Username:     data.User.Username,
				Action:       "logout",
				ResourceType: "user",
				ResourceID:   data.User.Username,
			})
		}

		if err := session.Destroy(sessionID); err != nil {
			log.Error().Err(err).Msg("failed to delete session")
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		Secure:   !s.cfg.DevMode,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	if idToken != "" {
		if u := oidc.Handler.EndSessionURL(idToken); u != "" {
			return c.Redirect(u)
		}
	}

	return c.Redirect(login.Path)
}
