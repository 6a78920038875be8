// Package academicyear provides the academic year pages, their breaks and
// release generation.
package academicyear

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/academicyear"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/release"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// Path is the base path of academic years.
	Path = handler.RootPath + "academic-years"

	// TemplateList lists academic years.
	TemplateList = "academicyear/list"
	// TemplateShow shows a year with its breaks and releases.
	TemplateShow = "academicyear/show"
)

// Service handles academic years.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate

	// now is replaced in tests.
	now func() time.Time
}

// Handler is the academic year handler.
var Handler = Service{}

// CreateForm accepts "2025" or "2025-09-01".
type CreateForm struct {
	Start string `form:"start" validate:"required,max=10"`
}

// BreakForm adds a break to a year.
type BreakForm struct {
	Name      string `form:"name"       validate:"required,max=100"`
	StartDate string `form:"start_date" validate:"required"`
	EndDate   string `form:"end_date"   validate:"required"`
}

// StatusForm overrides a year's status.
type StatusForm struct {
	Status string `form:"status" validate:"required,oneof=Future Next Current Past Archived"`
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

	if s.now == nil {
		s.now = time.Now
	}

	read := auth.RequirePermission(authService, auth.PermReleaseRead)
	write := auth.RequirePermission(authService, auth.PermReleaseWrite)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.List)
		router.Post(handler.RouterRootPath, write, s.Create)
		router.Get("/:id", read, s.Show)
		router.Post("/:id/status", write, s.SetStatus)
		router.Post("/:id/delete", write, s.Delete)
		router.Post("/:id/breaks", write, s.AddBreak)
		router.Post("/:id/breaks/:break/delete", write, s.DeleteBreak)
		router.Post("/:id/generate-releases", write, s.GenerateReleases)
	})
}

func navFor(title string, active bool) *navigation.Context {
	return navigation.NewContext(title, "releases", "academic-years").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Academic years", Path, active)
}

func yearURL(id uint) string {
	return Path + "/" + strconv.FormatUint(uint64(id), 10)
}

func (s *Service) renderList(c *fiber.Ctx, status int, in CreateForm, errs []string) error {
	filter := c.Query("status")

	years, err := academicyear.List(s.db, filter)
	if err != nil {
		return err
	}

	return c.Status(status).Render(TemplateList, fiber.Map{
		"Navigation": navFor("Academic years", true),
		"Years":      years,
		"Statuses":   academicyear.Statuses,
		"Status":     filter,
		"Form":       in,
		"CanEdit":    auth.Can(c, auth.PermReleaseWrite),
		"Errors":     errs,
	}, handler.BaseLayout)
}

// List shows academic years, optionally filtered by status.
func (s *Service) List(c *fiber.Ctx) error {
	return s.renderList(c, fiber.StatusOK, CreateForm{}, nil)
}

// Create adds a year from a start year or a 1 September date.
func (s *Service) Create(c *fiber.Ctx) error {
	in := CreateForm{}
	if err := c.BodyParser(&in); err != nil {
		return s.renderList(c, fiber.StatusBadRequest, in, []string{"Invalid form data"})
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderList(c, fiber.StatusBadRequest, in, handler.ValidationMessages(err))
	}

	start, err := academicyear.ParseStart(in.Start)
	if err != nil {
		return s.renderList(c, fiber.StatusBadRequest, in, []string{"Academic year must start on 1 September"})
	}

	ay, err := academicyear.Create(s.db, start, s.now())
	if errors.Is(err, academicyear.ErrExists) {
		return s.renderList(c, fiber.StatusConflict, in, []string{"Academic year " + academicyear.New(start, s.now()).FullName + " already exists"})
	}
	if err != nil {
		return err
	}

	s.audit(c, "create_academic_year", ay, fiber.Map{"name": ay.FullName, "status": ay.Status})

	return handler.Flash(c, handler.FlashSuccess, "Academic year "+ay.FullName+" created", yearURL(ay.ID))
}

func (s *Service) load(c *fiber.Ctx) (*models.AcademicYear, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	ay, err := academicyear.Get(s.db, uint(id))

	return ay, handler.NotFound(err, academicyear.ErrNotFound)
}

func (s *Service) renderShow(c *fiber.Ctx, status int, ay *models.AcademicYear, in BreakForm, errs []string) error {
	releases, err := release.List(s.db, release.Filter{AcademicYearID: ay.ID})
	if err != nil {
		return err
	}

	return c.Status(status).Render(TemplateShow, fiber.Map{
		"Navigation": navFor(ay.FullName, false).AddBreadcrumb(ay.FullName, yearURL(ay.ID), true),
		"Year":       ay,
		"Releases":   releases,
		"Statuses":   academicyear.Statuses,
		"BreakForm":  in,
		"CanEdit":    auth.Can(c, auth.PermReleaseWrite),
		"Errors":     errs,
	}, handler.BaseLayout)
}

// Show renders a year with its breaks and releases.
func (s *Service) Show(c *fiber.Ctx) error {
	ay, err := s.load(c)
	if err != nil {
		return err
	}

	return s.renderShow(c, fiber.StatusOK, ay, BreakForm{}, nil)
}

// SetStatus overrides the computed status, typically to archive a year.
// A year made Next or Current by hand gets its releases generated.
func (s *Service) SetStatus(c *fiber.Ctx) error {
	ay, err := s.load(c)
	if err != nil {
		return err
	}

	in := StatusForm{}
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderShow(c, fiber.StatusBadRequest, ay, BreakForm{}, handler.ValidationMessages(err))
	}

	change, err := academicyear.SetStatus(s.db, ay.ID, in.Status)
	if err != nil {
		return handler.NotFound(err, academicyear.ErrNotFound)
	}

	s.audit(c, "update_academic_year_status", ay, fiber.Map{"old_status": change.OldStatus, "new_status": change.NewStatus})

	msg := "Status set to " + in.Status

	if change.TriggersReleases() {
		created, err := release.Generate(s.db, ay.ID, false)
		if err != nil {
			return err
		}

		s.audit(c, "generate_releases", ay, fiber.Map{"created": len(created), "force": false})

		msg = fmt.Sprintf("%s, %d releases generated", msg, len(created))
	}

	return handler.Flash(c, handler.FlashSuccess, msg, yearURL(ay.ID))
}

// Delete removes a year with its breaks and releases.
func (s *Service) Delete(c *fiber.Ctx) error {
	ay, err := s.load(c)
	if err != nil {
		return err
	}

	if err := academicyear.Delete(s.db, ay.ID); err != nil {
		return handler.NotFound(err, academicyear.ErrNotFound)
	}

	s.audit(c, "delete_academic_year", ay, fiber.Map{"name": ay.FullName})

	return handler.Flash(c, handler.FlashSuccess, "Academic year "+ay.FullName+" deleted", Path)
}

// AddBreak adds a holiday inside the year.
func (s *Service) AddBreak(c *fiber.Ctx) error {
	ay, err := s.load(c)
	if err != nil {
		return err
	}

	in := BreakForm{}
	if err := c.BodyParser(&in); err != nil {
		return s.renderShow(c, fiber.StatusBadRequest, ay, in, []string{"Invalid form data"})
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderShow(c, fiber.StatusBadRequest, ay, in, handler.ValidationMessages(err))
	}

	start, err := handler.ParseDate(in.StartDate)
	if err != nil {
		return s.renderShow(c, fiber.StatusBadRequest, ay, in, []string{err.Error()})
	}

	end, err := handler.ParseDate(in.EndDate)
	if err != nil {
		return s.renderShow(c, fiber.StatusBadRequest, ay, in, []string{err.Error()})
	}

	b, err := academicyear.AddBreak(s.db, ay.ID, in.Name, *start, *end)
	if errors.Is(err, academicyear.ErrInvalidBreak) {
		return s.renderShow(c, fiber.StatusBadRequest, ay, in, []string{
			fmt.Sprintf("Break must fall between %s and %s and end after it starts",
				ay.StartDate.Format(handler.DateLayout), ay.EndDate.Format(handler.DateLayout)),
		})
	}
	if err != nil {
		return err
	}

	s.audit(c, "add_academic_break", ay, fiber.Map{"break": b.Name})

	return handler.Flash(c, handler.FlashSuccess, "Break "+b.Name+" added", yearURL(ay.ID))
}

// DeleteBreak removes a holiday.
func (s *Service) DeleteBreak(c *fiber.Ctx) error {
	ay, err := s.load(c)
	if err != nil {
		return err
	}

	breakID, err := handler.ParamID(c, "break")
	if err != nil {
		return err
	}

	if err := academicyear.DeleteBreak(s.db, ay.ID, uint(breakID)); err != nil {
		return handler.NotFound(err, academicyear.ErrNotFound)
	}

	s.audit(c, "delete_academic_break", ay, fiber.Map{"break_id": breakID})

	return handler.Flash(c, handler.FlashSuccess, "Break deleted", yearURL(ay.ID))
}

// GenerateReleases schedules the year's baseline and in-year releases.
// With force=true previously generated releases are replaced.
func (s *Service) GenerateReleases(c *fiber.Ctx) error {
	ay, err := s.load(c)
	if err != nil {
		return err
	}

	force := c.FormValue("force") == "true"

	created, err := release.Generate(s.db, ay.ID, force)
	if err != nil {
		return handler.NotFound(err, academicyear.ErrNotFound)
	}

	s.audit(c, "generate_releases", ay, fiber.Map{"created": len(created), "force": force})

	msg := fmt.Sprintf("%d releases generated for %s", len(created), ay.FullName)
	if len(created) == 0 {
		return handler.Flash(c, handler.FlashInfo, "All releases for "+ay.FullName+" already exist", yearURL(ay.ID))
	}

	return handler.Flash(c, handler.FlashSuccess, msg, yearURL(ay.ID))
}

func (s *Service) audit(c *fiber.Ctx, action string, ay *models.AcademicYear, details fiber.Map) {
	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: "academic_year",
		ResourceID:   strconv.FormatUint(uint64(ay.ID), 10),
		Details:      details,
	})
}
