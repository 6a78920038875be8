// Package sla provides the SLA threshold settings page.
package sla

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/slasetting"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

const (
	// Path is the path to the SLA settings page.
	Path = handler.RootPath + "admin/settings/sla"

	// TemplateName is the name of the SLA settings template.
	TemplateName = "admin/settings/sla"
)

// Service is the SLA settings handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the SLA settings handler.
var Handler = Service{}

// Form holds the green and amber days of the three clocks.
type Form struct {
	AssignmentGreen     int `form:"assignment_green"`
	AssignmentAmber     int `form:"assignment_amber"`
	DecisionGreen       int `form:"decision_green"`
	DecisionAmber       int `form:"decision_amber"`
	ImplementationGreen int `form:"implementation_green"`
	ImplementationAmber int `form:"implementation_amber"`
}

func formFrom(th workflow.Thresholds) Form {
	return Form{
		AssignmentGreen:     th.Assignment.GreenDays,
		AssignmentAmber:     th.Assignment.AmberDays,
		DecisionGreen:       th.Decision.GreenDays,
		DecisionAmber:       th.Decision.AmberDays,
		ImplementationGreen: th.Implementation.GreenDays,
		ImplementationAmber: th.Implementation.AmberDays,
	}
}

// Thresholds converts the form.
func (f Form) Thresholds() workflow.Thresholds {
	return workflow.Thresholds{
		Assignment:     workflow.Window{GreenDays: f.AssignmentGreen, AmberDays: f.AssignmentAmber},
		Decision:       workflow.Window{GreenDays: f.DecisionGreen, AmberDays: f.DecisionAmber},
		Implementation: workflow.Window{GreenDays: f.ImplementationGreen, AmberDays: f.ImplementationAmber},
	}
}

// Init initializes the SLA settings handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.validator = validator.New()

	app.Get(Path, auth.RequirePermission(authService, auth.PermAdminSettings), s.Get)
	app.Post(Path, auth.RequirePermission(authService, auth.PermAdminSettings), s.Post)
}

func (s *Service) render(c *fiber.Ctx, status int, in Form, errs []string, success string) error {
	nav := navigation.NewContext("SLA Settings", "settings", "sla").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Settings", navigation.Placeholder, false).
		AddBreadcrumb("SLA", Path, true)

	return c.Status(status).Render(TemplateName, fiber.Map{
		"Navigation": nav,
		"Form":       in,
		"Defaults":   formFrom(workflow.DefaultThresholds),
		"Errors":     errs,
		"Success":    success,
	}, handler.BaseLayout)
}

// Get renders the stored thresholds, or the defaults.
func (s *Service) Get(c *fiber.Ctx) error {
	th, err := slasetting.Load(s.db)
	if err != nil {
		log.Error().Err(err).Msg("failed to load SLA settings")

		return err
	}

	return s.render(c, fiber.StatusOK, formFrom(th), nil, "")
}

// Post validates and stores the thresholds. Green must not exceed amber.
func (s *Service) Post(c *fiber.Ctx) error {
	in := Form{}
	if err := c.BodyParser(&in); err != nil {
		return s.render(c, fiber.StatusBadRequest, in, []string{"Invalid form data"}, "")
	}

	th := in.Thresholds()

	var errs []string

	for _, clock := range []struct {
		name   string
		window workflow.Window
	}{
		{"Assignment", th.Assignment},
		{"Decision", th.Decision},
		{"Implementation", th.Implementation},
	} {
		if err := s.validator.Struct(clock.window); err != nil {
			for _, msg := range handler.ValidationMessages(err) {
				errs = append(errs, clock.name+": "+msg)
			}
		}
	}

	if len(errs) > 0 {
		log.Warn().Strs("errors", errs).Msg("validation failed for SLA settings")

		return s.render(c, fiber.StatusBadRequest, in, errs, "")
	}

	if err := slasetting.Save(s.db, th); err != nil {
		log.Error().Err(err).Msg("failed to save SLA settings")

		return err
	}

	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       "update_sla_settings",
		ResourceType: "setting",
		ResourceID:   slasetting.SettingKey,
		Details:      th,
	})

	log.Info().Interface("thresholds", th).Msg("SLA settings saved")

	return s.render(c, fiber.StatusOK, in, nil, "Settings saved successfully")
}
