// Package impactarea manages the impact areas a BCR can touch.
package impactarea

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/bcrconfig"
	"github.com/dfe-rrdm/rrdm/internal/db/dberr"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// Path is the base path for impact areas.
	Path = handler.RootPath + "impacted-areas"

	// TemplateList lists impact areas.
	TemplateList = "impactarea/list"
	// TemplateForm creates or edits an impact area.
	TemplateForm = "impactarea/form"
)

// Service manages impact areas.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the impact area handler.
var Handler = Service{}

// Form is the impact area form.
type Form struct {
	Name        string `form:"name"        validate:"required,max=100"`
	Description string `form:"description" validate:"max=500"`
	Order       *int   `form:"order"       validate:"required,min=0,max=9999"`
}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.validator = validator.New()

	read := auth.RequirePermission(authService, auth.PermBcrRead)
	manage := auth.RequirePermission(authService, auth.PermAdminSettings)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.List)
		router.Post(handler.RouterRootPath, manage, s.Create)
		router.Get("/new", manage, s.New)
		router.Get("/:id/edit", manage, s.Edit)
		router.Post("/:id", manage, s.Update)
		router.Get("/:id/delete", manage, s.ConfirmDelete)
		router.Post("/:id/delete", manage, s.Delete)
	})
}

func navFor(title, page string) *navigation.Context {
	return navigation.NewContext(title, "admin", "impact-areas").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Impacted areas", Path, page == "list")
}

// List shows all impact areas in display order.
func (s *Service) List(c *fiber.Ctx) error {
	areas, err := bcrconfig.ListByType(s.db, models.ConfigTypeImpactArea)
	if err != nil {
		return err
	}

	return c.Render(TemplateList, fiber.Map{
		"Navigation": navFor("Impacted areas", "list"),
		"Areas":      areas,
	}, handler.BaseLayout)
}

func (s *Service) renderForm(c *fiber.Ctx, status int, id uint, in Form, errs []string) error {
	title, action := "New impacted area", Path
	if id > 0 {
		title, action = "Edit impacted area", Path+"/"+strconv.FormatUint(uint64(id), 10)
	}

	return c.Status(status).Render(TemplateForm, fiber.Map{
		"Navigation": navFor(title, "form").AddBreadcrumb(title, action, true),
		"Form":       in,
		"Action":     action,
		"IsCreate":   id == 0,
		"Errors":     errs,
	}, handler.BaseLayout)
}

func (s *Service) parse(c *fiber.Ctx) (Form, []string) {
	in := Form{}
	if err := c.BodyParser(&in); err != nil {
		return in, []string{"Invalid form data"}
	}

	in.Name = strings.TrimSpace(in.Name)

	if err := s.validator.Struct(in); err != nil {
		return in, handler.ValidationMessages(err)
	}

	return in, nil
}

// New shows an empty form.
func (s *Service) New(c *fiber.Ctx) error {
	return s.renderForm(c, fiber.StatusOK, 0, Form{}, nil)
}

// Create adds an impact area.
func (s *Service) Create(c *fiber.Ctx) error {
	in, errs := s.parse(c)
	if errs != nil {
		return s.renderForm(c, fiber.StatusBadRequest, 0, in, errs)
	}

	area, err := bcrconfig.CreateImpactArea(s.db, bcrconfig.ImpactArea{
		Name: in.Name, Description: in.Description, Order: *in.Order,
	})
	if dberr.IsDuplicate(err) {
		return s.renderForm(c, fiber.StatusConflict, 0, in, []string{dberr.MsgDuplicate})
	}
	if err != nil {
		return err
	}

	s.audit(c, "create_impact_area", area)

	return handler.Flash(c, handler.FlashSuccess, "Impacted area "+area.Name+" created", Path)
}

func (s *Service) load(c *fiber.Ctx) (*models.BcrConfig, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	area, err := bcrconfig.GetImpactArea(s.db, uint(id))

	return area, handler.NotFound(err, bcrconfig.ErrNotFound)
}

// Edit shows the form for an existing area.
func (s *Service) Edit(c *fiber.Ctx) error {
	area, err := s.load(c)
	if err != nil {
		return err
	}

	order := area.DisplayOrder

	return s.renderForm(c, fiber.StatusOK, area.ID, Form{
		Name: area.Name, Description: area.Description, Order: &order,
	}, nil)
}

// Update saves an existing area.
func (s *Service) Update(c *fiber.Ctx) error {
	area, err := s.load(c)
	if err != nil {
		return err
	}

	in, errs := s.parse(c)
	if errs != nil {
		return s.renderForm(c, fiber.StatusBadRequest, area.ID, in, errs)
	}

	updated, err := bcrconfig.UpdateImpactArea(s.db, area.ID, bcrconfig.ImpactArea{
		Name: in.Name, Description: in.Description, Order: *in.Order,
	})
	if dberr.IsDuplicate(err) {
		return s.renderForm(c, fiber.StatusConflict, area.ID, in, []string{dberr.MsgDuplicate})
	}
	if err != nil {
		return err
	}

	s.audit(c, "update_impact_area", updated)

	return handler.Flash(c, handler.FlashSuccess, "Impacted area "+updated.Name+" updated", Path)
}

// ConfirmDelete asks before deleting an area.
func (s *Service) ConfirmDelete(c *fiber.Ctx) error {
	area, err := s.load(c)
	if err != nil {
		return err
	}

	used, err := bcrconfig.UsageCount(s.db, area.ID)
	if err != nil {
		return err
	}

	id := strconv.FormatUint(uint64(area.ID), 10)

	return c.Render(handler.TemplateConfirmDelete, fiber.Map{
		"Navigation": navFor("Delete impacted area", "delete").AddBreadcrumb(area.Name, Path+"/"+id+"/delete", true),
		"Name":       area.Name,
		"Kind":       "impacted area",
		"Action":     Path + "/" + id + "/delete",
		"Cancel":     Path,
		"InUse":      used,
	}, handler.BaseLayout)
}

// Delete removes an area that no BCR uses.
func (s *Service) Delete(c *fiber.Ctx) error {
	area, err := s.load(c)
	if err != nil {
		return err
	}

	err = bcrconfig.DeleteImpactArea(s.db, area.ID)
	if errors.Is(err, bcrconfig.ErrInUse) {
		return handler.Flash(c, handler.FlashError, "Cannot delete "+area.Name+": it is used by one or more BCRs", Path)
	}
	if err != nil {
		return handler.NotFound(err, bcrconfig.ErrNotFound)
	}

	s.audit(c, "delete_impact_area", area)

	return handler.Flash(c, handler.FlashSuccess, "Impacted area "+area.Name+" deleted", Path)
}

func (s *Service) audit(c *fiber.Ctx, action string, area *models.BcrConfig) {
	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: "impact_area",
		ResourceID:   strconv.FormatUint(uint64(area.ID), 10),
		Details:      fiber.Map{"name": area.Name, "value": area.Value},
	})
}
