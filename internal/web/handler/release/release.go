// Package release provides the release management pages.
package release

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
	"github.com/dfe-rrdm/rrdm/internal/db/controller/academicyear"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/release"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// Path is the base path of release management.
	Path = handler.RootPath + "release-management"

	// TemplateList lists releases.
	TemplateList = "release/list"
	// TemplateForm edits a release.
	TemplateForm = "release/form"
	// TemplateNew creates an ad hoc release.
	TemplateNew = "release/new"
	// TemplateDiary shows releases by month.
	TemplateDiary = "release/diary"
)

// Service handles releases.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the release handler.
var Handler = Service{}

var releaseTypes = []string{models.ReleaseBaseline, models.ReleaseInYear, models.ReleaseAdhoc}

// Form edits the status and notes of a release.
type Form struct {
	Status string `form:"status" validate:"required,oneof=Planned InProgress Deployed Cancelled"`
	Notes  string `form:"notes"  validate:"max=5000"`
}

// AdhocForm creates an ad hoc release.
type AdhocForm struct {
	AcademicYearID uint   `form:"academic_year_id" validate:"required"`
	Name           string `form:"name"             validate:"required,max=255"`
	GoLiveDate     string `form:"go_live_date"     validate:"required"`
	FreezeCutOff   string `form:"freeze_cut_off"`
	Notes          string `form:"notes"            validate:"max=5000"`
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

	read := auth.RequirePermission(authService, auth.PermReleaseRead)
	write := auth.RequirePermission(authService, auth.PermReleaseWrite)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.List)
		router.Post(handler.RouterRootPath, write, s.Create)
		router.Get("/diary", read, s.Diary)
		router.Get("/new", write, s.New)
		router.Get("/:id/edit", write, s.Edit)
		router.Post("/:id", write, s.Update)
		router.Post("/:id/delete", write, s.Delete)
	})
}

func navFor(title string, active bool) *navigation.Context {
	return navigation.NewContext(title, "releases", "release-management").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Releases", Path, active)
}

// List shows releases with the academic year, status and type filters.
func (s *Service) List(c *fiber.Ctx) error {
	f := release.Filter{
		AcademicYearID: uint(c.QueryInt("year", 0)),
		Status:         c.Query("status"),
		Type:           c.Query("type"),
	}

	releases, err := release.List(s.db, f)
	if err != nil {
		return err
	}

	years, err := academicyear.List(s.db, "")
	if err != nil {
		return err
	}

	return c.Render(TemplateList, fiber.Map{
		"Navigation": navFor("Releases", true),
		"Releases":   releases,
		"Years":      years,
		"Statuses":   release.Statuses,
		"Types":      releaseTypes,
		"Filter":     f,
		"CanEdit":    auth.Can(c, auth.PermReleaseWrite),
	}, handler.BaseLayout)
}

// Diary shows releases grouped by go-live month with the BCRs scheduled for each.
func (s *Service) Diary(c *fiber.Ctx) error {
	f := release.Filter{
		AcademicYearID: uint(c.QueryInt("year", 0)),
		Type:           c.Query("type"),
	}

	months, err := release.Diary(s.db, f)
	if err != nil {
		return err
	}

	years, err := academicyear.List(s.db, "")
	if err != nil {
		return err
	}

	return c.Render(TemplateDiary, fiber.Map{
		"Navigation": navFor("Release diary", false).AddBreadcrumb("Diary", "", true),
		"Months":     months,
		"Years":      years,
		"Types":      releaseTypes,
		"Filter":     f,
	}, handler.BaseLayout)
}

func (s *Service) renderNew(c *fiber.Ctx, status int, in AdhocForm, errs []string) error {
	years, err := academicyear.List(s.db, "")
	if err != nil {
		return err
	}

	return c.Status(status).Render(TemplateNew, fiber.Map{
		"Navigation": navFor("New ad hoc release", false).AddBreadcrumb("New ad hoc release", "", true),
		"Years":      years,
		"Form":       in,
		"Errors":     errs,
	}, handler.BaseLayout)
}

// New shows the ad hoc release form.
func (s *Service) New(c *fiber.Ctx) error {
	return s.renderNew(c, fiber.StatusOK, AdhocForm{AcademicYearID: uint(c.QueryInt("year", 0))}, nil)
}

// Create adds an ad hoc release.
func (s *Service) Create(c *fiber.Ctx) error {
	in := AdhocForm{}
	if err := c.BodyParser(&in); err != nil {
		return s.renderNew(c, fiber.StatusBadRequest, in, []string{"Invalid form data"})
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderNew(c, fiber.StatusBadRequest, in, handler.ValidationMessages(err))
	}

	goLive, err := handler.ParseDate(in.GoLiveDate)
	if err != nil {
		return s.renderNew(c, fiber.StatusBadRequest, in, []string{err.Error()})
	}

	cutOff, err := handler.ParseDate(in.FreezeCutOff)
	if err != nil {
		return s.renderNew(c, fiber.StatusBadRequest, in, []string{err.Error()})
	}

	r, err := release.CreateAdhoc(s.db, release.Adhoc{
		AcademicYearID: in.AcademicYearID,
		Name:           strings.TrimSpace(in.Name),
		GoLiveDate:     *goLive,
		FreezeCutOff:   cutOff,
		Notes:          strings.TrimSpace(in.Notes),
	})

	switch {
	case errors.Is(err, release.ErrOutsideYear), errors.Is(err, release.ErrFreezeAfterGoLive):
		return s.renderNew(c, fiber.StatusBadRequest, in, []string{capitalise(err.Error())})
	case errors.Is(err, academicyear.ErrNotFound):
		return s.renderNew(c, fiber.StatusBadRequest, in, []string{"Choose an academic year"})
	case err != nil:
		return err
	}

	s.audit(c, "create_release", r, fiber.Map{"code": r.ReleaseCode, "go_live": r.GoLiveDate.Format(handler.DateLayout)})

	return handler.Flash(c, handler.FlashSuccess, "Release "+r.ReleaseCode+" created", Path)
}

func capitalise(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Service) load(c *fiber.Ctx) (*models.Release, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	r, err := release.Get(s.db, id)

	return r, handler.NotFound(err, release.ErrNotFound)
}

func (s *Service) renderForm(c *fiber.Ctx, status int, r *models.Release, in Form, errs []string) error {
	return c.Status(status).Render(TemplateForm, fiber.Map{
		"Navigation": navFor(r.ReleaseCode, false).AddBreadcrumb(r.ReleaseCode, "", true),
		"Release":    r,
		"Form":       in,
		"Statuses":   release.Statuses,
		"Errors":     errs,
	}, handler.BaseLayout)
}

// Edit shows the status form.
func (s *Service) Edit(c *fiber.Ctx) error {
	r, err := s.load(c)
	if err != nil {
		return err
	}

	return s.renderForm(c, fiber.StatusOK, r, Form{Status: r.Status, Notes: r.Notes}, nil)
}

// Update saves status and notes.
func (s *Service) Update(c *fiber.Ctx) error {
	r, err := s.load(c)
	if err != nil {
		return err
	}

	in := Form{}
	if err := c.BodyParser(&in); err != nil {
		return s.renderForm(c, fiber.StatusBadRequest, r, in, []string{"Invalid form data"})
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderForm(c, fiber.StatusBadRequest, r, in, handler.ValidationMessages(err))
	}

	oldStatus := r.Status

	r, err = release.Update(s.db, r.ID, in.Status, in.Notes)
	if errors.Is(err, release.ErrInvalidStatus) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return handler.NotFound(err, release.ErrNotFound)
	}

	s.audit(c, "update_release", r, fiber.Map{"code": r.ReleaseCode, "old_status": oldStatus, "new_status": r.Status})

	return handler.Flash(c, handler.FlashSuccess, "Release "+r.ReleaseCode+" updated", Path)
}

// Delete removes a release.
func (s *Service) Delete(c *fiber.Ctx) error {
	r, err := s.load(c)
	if err != nil {
		return err
	}

	if err := release.Delete(s.db, r.ID); err != nil {
		return handler.NotFound(err, release.ErrNotFound)
	}

	s.audit(c, "delete_release", r, fiber.Map{"code": r.ReleaseCode})

	return handler.Flash(c, handler.FlashSuccess, "Release "+r.ReleaseCode+" deleted", Path)
}

func (s *Service) audit(c *fiber.Ctx, action string, r *models.Release, details fiber.Map) {
	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: "release",
		ResourceID:   strconv.FormatUint(r.ID, 10),
		Details:      details,
	})
}
