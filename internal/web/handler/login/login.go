package login

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

const (
	// Path is the path to the login page.
	Path = "/login"

	// TemplateName is the login page.
	TemplateName = "login"

	authTypeLocal = "local"
	authTypeLDAP  = "ldap"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	local    *auth.LocalProvider
	ldapAuth *auth.LDAPProvider
}

// Handler is the login handler.
var Handler = Service{}

// Form is the login form.
type Form struct {
	Username string `form:"username"`
	Password string `form:"password"`
	AuthType string `form:"auth_type"`
}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, _ *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.local = auth.NewLocalProvider(db)
	s.ldapAuth = nil

	if cfg.Auth.LDAP.Enabled {
		p, err := auth.NewLDAPProvider(cfg.Auth.LDAP, cfg.Auth.DefaultRole, db)
		if err != nil {
			log.Warn().Err(err).Msg("LDAP provider unavailable")
		} else {
			s.ldapAuth = p
		}
	}

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Get)
		router.Post(handler.RouterRootPath, s.Post)
	})
}

func (s *Service) viewData(errMsg string) fiber.Map {
	m := fiber.Map{
		"local_db_enabled": s.cfg.Auth.LocalDB.Enabled,
		"ldap_enabled":     s.cfg.Auth.LDAP.Enabled && s.ldapAuth != nil,
		"oidc_enabled":     s.cfg.Auth.OIDC.Enabled,
		"oidc_label":       s.cfg.Auth.OIDC.ButtonLabel,
	}

	if errMsg != "" {
		m["error"] = errMsg
	}

	return m
}

// Get handles the login page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.Render(TemplateName, s.viewData(""), handler.BaseLayout)
}

// Post handles the login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	in := new(Form)
	if err := c.BodyParser(in); err != nil {
		return c.Render(TemplateName, s.viewData(ErrInvalidFormData.Error()), handler.BaseLayout)
	}

	authType, err := s.pickAuthType(in.AuthType)
	if err != nil {
		return c.Render(TemplateName, s.viewData(err.Error()), handler.BaseLayout)
	}

	user, err := s.authenticate(authType, strings.TrimSpace(in.Username), in.Password)
	if err != nil {
		log.Info().Err(err).Str("username", in.Username).Str("auth_type", authType).Msg("login failed")

		return c.Render(TemplateName, s.viewData(err.Error()), handler.BaseLayout)
	}

	if err := StartSession(c, s.cfg, user, ""); err != nil {
		log.Error().Err(err).Msg("failed to start session")

		return c.Render(TemplateName, s.viewData(ErrInternalServerError.Error()), handler.BaseLayout)
	}

	audit.Record(s.db, audit.Entry{
		UserID:       &user.ID,
		Username:     user.Username,
		Action:       "login",
		ResourceType: "user",
		ResourceID:   user.Username,
		Details:      fiber.Map{"method": authType, "ip": c.IP()},
	})

	return c.Redirect(handler.DashboardPath)
}

// pickAuthType resolves the requested method against the configuration.
// Without a request, local login wins over LDAP.
func (s *Service) pickAuthType(requested string) (string, error) {
	switch requested {
	case "":
		switch {
		case s.cfg.Auth.LocalDB.Enabled:
			return authTypeLocal, nil
		case s.cfg.Auth.LDAP.Enabled:
			return authTypeLDAP, nil
		default:
			return "", ErrNoAuthMethod
		}
	case authTypeLocal:
		if !s.cfg.Auth.LocalDB.Enabled {
			return "", ErrLocalAuthDisabled
		}

		return authTypeLocal, nil
	case authTypeLDAP:
		if !s.cfg.Auth.LDAP.Enabled || s.ldapAuth == nil {
			return "", ErrLDAPAuthDisabled
		}

		return authTypeLDAP, nil
	default:
		return "", ErrInvalidAuthMethod
	}
}

// authenticate checks credentials and maps provider errors to what the user may see.
func (s *Service) authenticate(authType, username, password string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)

	switch authType {
	case authTypeLocal:
		user, err = s.local.Authenticate(username, password)
	case authTypeLDAP:
		if s.ldapAuth == nil {
			return nil, ErrLDAPAuthDisabled
		}

		user, err = s.ldapAuth.Authenticate(username, password)
	default:
		return nil, ErrInvalidAuthMethod
	}

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, auth.ErrUserAccountDisabled):
		return nil, ErrAccountDisabled
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, auth.ErrMultipleUsersFound),
		authType == authTypeLDAP:
		return nil, ErrInvalidCredentials
	default:
		log.Error().Err(err).Msg("authentication error")

		return nil, ErrInternalServerError
	}
}

// StartSession stores the session and sets the login cookie.
func StartSession(c *fiber.Ctx, cfg *config.Config, user *models.User, idToken string) error {
	sessionID, err := session.GenerateSessionID()
	if err != nil {
		return err
	}

	data := &session.Data{User: *user, IDToken: idToken}
	if err = data.Write(sessionID, cfg.Webserver.Session.ExpiryTime); err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    sessionID,
		MaxAge:   int(cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   !cfg.DevMode,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return nil
}
