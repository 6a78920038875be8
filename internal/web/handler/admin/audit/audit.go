// Package audit provides the audit log page.
package audit

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// Path is the audit log page.
	Path = handler.RootPath + "admin/audit"

	// TemplateList lists audit entries.
	TemplateList = "admin/audit/list"
)

// Service handles the audit log page.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the audit handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	app.Get(Path, auth.RequirePermission(authService, auth.PermAdminAudit), s.List)
}

// List shows one page of audit entries filtered by user, action,
// resource type and date range. The "to" date is inclusive.
func (s *Service) List(c *fiber.Ctx) error {
	page, pageSize := handler.QueryPage(c)

	f := audit.Filter{
		Username:     strings.TrimSpace(c.Query("username")),
		Action:       c.Query("action"),
		ResourceType: c.Query("resource_type"),
		Page:         page,
		PageSize:     pageSize,
	}

	var errs []string

	if from, err := handler.ParseDate(c.Query("from")); err != nil {
		errs = append(errs, err.Error())
	} else if from != nil {
		f.From = *from
	}

	if to, err := handler.ParseDate(c.Query("to")); err != nil {
		errs = append(errs, err.Error())
	} else if to != nil {
		f.To = to.Add(24 * time.Hour)
	}

	entries, total, err := audit.List(s.db, f)
	if err != nil {
		return err
	}

	actions, err := audit.Actions(s.db)
	if err != nil {
		return err
	}

	nav := navigation.NewContext("Audit log", "admin", "audit").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Admin", navigation.Placeholder, false).
		AddBreadcrumb("Audit log", Path, true)

	status := fiber.StatusOK
	if errs != nil {
		status = fiber.StatusBadRequest
	}

	return c.Status(status).Render(TemplateList, fiber.Map{
		"Navigation": nav,
		"Entries":    entries,
		"Actions":    actions,
		"Filter":     f,
		"From":       c.Query("from"),
		"To":         c.Query("to"),
		"Pagination": handler.NewPage(page, pageSize, total),
		"Errors":     errs,
	}, handler.BaseLayout)
}
