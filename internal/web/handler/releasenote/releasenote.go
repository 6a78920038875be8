// Package releasenote provides the reference data release notes pages.
package releasenote

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/releasenote"
	"github.com/dfe-rrdm/rrdm/internal/db/dberr"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// Path is the base path of release notes.
	Path = handler.RootPath + "ref-data/release-notes"

	// TemplateList lists release notes.
	TemplateList = "releasenote/list"
	// TemplateShow shows one release note.
	TemplateShow = "releasenote/show"
	// TemplateForm creates or edits a release note.
	TemplateForm = "releasenote/form"
)

// Service handles release notes.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the release note handler.
var Handler = Service{}

// Form is the release note form. Description is Markdown.
type Form struct {
	Version     string `form:"version"      validate:"required,max=50"`
	ReleaseDate string `form:"release_date" validate:"required"`
	Title       string `form:"title"        validate:"required,max=255"`
	Description string `form:"description"  validate:"max=20000"`
	Features    string `form:"features"     validate:"max=20000"`
	BugFixes    string `form:"bug_fixes"    validate:"max=20000"`
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
		router.Get("/new", write, s.New)
		router.Get("/:id", read, s.Show)
		router.Get("/:id/edit", write, s.Edit)
		router.Post("/:id", write, s.Update)
		router.Post("/:id/delete", write, s.Delete)
	})
}

func navFor(title string, active bool) *navigation.Context {
	return navigation.NewContext(title, "refdata", "release-notes").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Release notes", Path, active)
}

func noteURL(id uint64) string {
	return Path + "/" + strconv.FormatUint(id, 10)
}

// List shows release notes, newest release first.
func (s *Service) List(c *fiber.Ctx) error {
	notes, err := releasenote.List(s.db)
	if err != nil {
		return err
	}

	return c.Render(TemplateList, fiber.Map{
		"Navigation": navFor("Release notes", true),
		"Notes":      notes,
	}, handler.BaseLayout)
}

func (s *Service) load(c *fiber.Ctx) (*models.ReleaseNote, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	n, err := releasenote.Get(s.db, id)

	return n, handler.NotFound(err, releasenote.ErrNotFound)
}

// Show renders a release note with its Markdown description.
func (s *Service) Show(c *fiber.Ctx) error {
	n, err := s.load(c)
	if err != nil {
		return err
	}

	return c.Render(TemplateShow, fiber.Map{
		"Navigation": navFor(n.Version, false).AddBreadcrumb(n.Version, noteURL(n.ID), true),
		"Note":       n,
	}, handler.BaseLayout)
}

func (s *Service) renderForm(c *fiber.Ctx, status int, id uint64, in Form, errs []string) error {
	title, action := "New release note", Path
	if id > 0 {
		title, action = "Edit release note", noteURL(id)
	}

	return c.Status(status).Render(TemplateForm, fiber.Map{
		"Navigation": navFor(title, false).AddBreadcrumb(title, action, true),
		"Form":       in,
		"Action":     action,
		"IsCreate":   id == 0,
		"Errors":     errs,
	}, handler.BaseLayout)
}

// parse reads and validates the form into a model.
func (s *Service) parse(c *fiber.Ctx) (Form, *models.ReleaseNote, []string) {
	in := Form{}
	if err := c.BodyParser(&in); err != nil {
		return in, nil, []string{"Invalid form data"}
	}

	in.Version = strings.TrimSpace(in.Version)
	in.Title = strings.TrimSpace(in.Title)

	if err := s.validator.Struct(in); err != nil {
		return in, nil, handler.ValidationMessages(err)
	}

	date, err := handler.ParseDate(in.ReleaseDate)
	if err != nil {
		return in, nil, []string{err.Error()}
	}

	return in, &models.ReleaseNote{
		Version:     in.Version,
		ReleaseDate: *date,
		Title:       in.Title,
		Description: in.Description,
		Features:    in.Features,
		BugFixes:    in.BugFixes,
	}, nil
}

// New shows an empty form.
func (s *Service) New(c *fiber.Ctx) error {
	return s.renderForm(c, fiber.StatusOK, 0, Form{}, nil)
}

// Create stores a release note. A duplicate version re-renders the form.
func (s *Service) Create(c *fiber.Ctx) error {
	in, note, errs := s.parse(c)
	if errs != nil {
		return s.renderForm(c, fiber.StatusBadRequest, 0, in, errs)
	}

	err := releasenote.Create(s.db, note)
	if dberr.IsDuplicate(err) {
		return s.renderForm(c, fiber.StatusConflict, 0, in, []string{dberr.MsgDuplicate})
	}
	if err != nil {
		return err
	}

	s.audit(c, "create_release_note", note)

	return handler.Flash(c, handler.FlashSuccess, "Release note "+note.Version+" created", noteURL(note.ID))
}

// Edit shows the form for an existing note.
func (s *Service) Edit(c *fiber.Ctx) error {
	n, err := s.load(c)
	if err != nil {
		return err
	}

	return s.renderForm(c, fiber.StatusOK, n.ID, Form{
		Version:     n.Version,
		ReleaseDate: n.ReleaseDate.Format(handler.DateLayout),
		Title:       n.Title,
		Description: n.Description,
		Features:    n.Features,
		BugFixes:    n.BugFixes,
	}, nil)
}

// Update saves a note.
func (s *Service) Update(c *fiber.Ctx) error {
	n, err := s.load(c)
	if err != nil {
		return err
	}

	in, note, errs := s.parse(c)
	if errs != nil {
		return s.renderForm(c, fiber.StatusBadRequest, n.ID, in, errs)
	}

	updated, err := releasenote.Update(s.db, n.ID, *note)
	if dberr.IsDuplicate(err) {
		return s.renderForm(c, fiber.StatusConflict, n.ID, in, []string{dberr.MsgDuplicate})
	}
	if err != nil {
		return handler.NotFound(err, releasenote.ErrNotFound)
	}

	s.audit(c, "update_release_note", updated)

	return handler.Flash(c, handler.FlashSuccess, "Release note "+updated.Version+" updated", noteURL(updated.ID))
}

// Delete removes a note.
func (s *Service) Delete(c *fiber.Ctx) error {
	n, err := s.load(c)
	if err != nil {
		return err
	}

	if err := releasenote.Delete(s.db, n.ID); err != nil {
		return handler.NotFound(err, releasenote.ErrNotFound)
	}

	s.audit(c, "delete_release_note", n)

	return handler.Flash(c, handler.FlashSuccess, "Release note "+n.Version+" deleted", Path)
}

func (s *Service) audit(c *fiber.Ctx, action string, n *models.ReleaseNote) {
	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: "release_note",
		ResourceID:   strconv.FormatUint(n.ID, 10),
		Details:      fiber.Map{"version": n.Version},
	})
}
