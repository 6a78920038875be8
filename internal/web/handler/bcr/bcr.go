// Package bcr provides the Business Change Request pages: list, dashboard,
// detail and the workflow actions.
package bcr

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	bcrs "github.com/dfe-rrdm/rrdm/internal/db/controller/bcr"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/bcrconfig"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/release"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/slasetting"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

const (
	// Path is the base path of the BCR pages.
	Path = handler.RootPath + "bcr"

	// TemplateList lists BCRs.
	TemplateList = "bcr/list"
	// TemplateDashboard shows BCR counters.
	TemplateDashboard = "bcr/dashboard"
	// TemplateWorkflow shows the workflow phases.
	TemplateWorkflow = "bcr/workflow"
	// TemplateForm creates a BCR.
	TemplateForm = "bcr/form"
	// TemplateShow shows one BCR.
	TemplateShow = "bcr/show"
	// TemplateUpdate is the phase update form.
	TemplateUpdate = "bcr/update"
	// TemplateConfirm is shown after a phase update.
	TemplateConfirm = "bcr/confirm"
	// TemplateWarning is shown before closing a BCR.
	TemplateWarning = "bcr/warning"

	resourceType = "bcr"
	recentCount  = 5
)

// Service handles the BCR pages.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate

	// Workflow applies phase changes. Set before Init.
	Workflow *workflow.Service
}

// Handler is the BCR handler.
var Handler = Service{}

// Init registers the BCR routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if s.Workflow == nil {
		log.Fatal().Msg("bcr handler needs a workflow service")
		return
	}

	s.cfg = cfg
	s.db = db
	s.validator = validator.New()

	read := auth.RequirePermission(authService, auth.PermBcrRead)
	write := auth.RequirePermission(authService, auth.PermBcrWrite)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.List)
		router.Post(handler.RouterRootPath, write, s.Create)
		router.Get("/dashboard", read, s.Dashboard)
		router.Get("/workflow", read, s.Phases)
		router.Get("/new", write, s.New)
		router.Get("/:id", read, s.Show)
		router.Get("/:id/update", write, s.UpdateForm)
		router.Post("/:id/update", write, s.Update)
		router.Get("/:id/confirm", read, s.Confirm)
		router.Get("/:id/warning", write, s.Warning)
		router.Post("/:id/close", write, s.Close)
		router.Post("/:id/notes", write, s.AddNote)
		router.Post("/:id/assign", write, s.Assign)
		router.Post("/:id/release", write, s.AssignRelease)
	})
}

func navFor(title, page string) *navigation.Context {
	return navigation.NewContext(title, "bcr", page).
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("BCRs", Path, page == "list")
}

// List shows BCRs with search, status, phase and urgency filters.
func (s *Service) List(c *fiber.Ctx) error {
	page, pageSize := handler.QueryPage(c)

	f := bcrs.Filter{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Phase:    c.QueryInt("phase", 0),
		Urgency:  c.Query("urgency"),
		Page:     page,
		PageSize: pageSize,
	}

	list, total, err := bcrs.List(s.db, f)
	if err != nil {
		return err
	}

	return c.Render(TemplateList, fiber.Map{
		"Navigation": navFor("Business Change Requests", "list"),
		"Bcrs":       list,
		"Filter":     f,
		"Pagination": handler.NewPage(page, pageSize, total),
		"Phases":     workflow.Phases,
		"Urgencies":  workflow.UrgencyLevels,
	}, handler.BaseLayout)
}

// Dashboard shows counts by status and phase and the latest changes.
func (s *Service) Dashboard(c *fiber.Ctx) error {
	byStatus, err := bcrs.CountByStatus(s.db)
	if err != nil {
		return err
	}

	byPhase, err := bcrs.CountByPhase(s.db)
	if err != nil {
		return err
	}

	recent, err := bcrs.Recent(s.db, recentCount)
	if err != nil {
		return err
	}

	nav := navFor("BCR dashboard", "dashboard").AddBreadcrumb("Dashboard", Path+"/dashboard", true)

	return c.Render(TemplateDashboard, fiber.Map{
		"Navigation": nav,
		"ByStatus":   byStatus,
		"ByPhase":    byPhase,
		"Phases":     workflow.Phases,
		"Recent":     recent,
	}, handler.BaseLayout)
}

// Phases lists the workflow phases and their status values.
func (s *Service) Phases(c *fiber.Ctx) error {
	statuses, err := bcrconfig.ListByType(s.db, models.ConfigTypeStatus)
	if err != nil {
		return err
	}

	nav := navFor("Workflow", "workflow").AddBreadcrumb("Workflow", Path+"/workflow", true)

	return c.Render(TemplateWorkflow, fiber.Map{
		"Navigation": nav,
		"Phases":     workflow.Phases,
		"Statuses":   statuses,
	}, handler.BaseLayout)
}

// CreateForm is the form to raise a BCR directly.
type CreateForm struct {
	Title       string   `form:"title"        validate:"required,max=255"`
	Description string   `form:"description"  validate:"required,max=5000"`
	Impact      string   `form:"impact"       validate:"max=5000"`
	Urgency     string   `form:"urgency"      validate:"required,oneof=Low Medium High Critical Unknown"`
	ImpactAreas []string `form:"impact_areas"`
	TargetDate  string   `form:"target_date"`
}

func (s *Service) renderForm(c *fiber.Ctx, status int, in CreateForm, errs []string) error {
	areas, err := bcrconfig.ListByType(s.db, models.ConfigTypeImpactArea)
	if err != nil {
		return err
	}

	nav := navFor("New BCR", "new").AddBreadcrumb("New", Path+"/new", true)

	return c.Status(status).Render(TemplateForm, fiber.Map{
		"Navigation":  nav,
		"Form":        in,
		"ImpactAreas": areas,
		"Urgencies":   workflow.UrgencyLevels,
		"Errors":      errs,
	}, handler.BaseLayout)
}

// New shows the BCR creation form.
func (s *Service) New(c *fiber.Ctx) error {
	return s.renderForm(c, fiber.StatusOK, CreateForm{Urgency: "Medium"}, nil)
}

// Create raises a BCR.
func (s *Service) Create(c *fiber.Ctx) error {
	in := CreateForm{}
	if err := c.BodyParser(&in); err != nil {
		return s.renderForm(c, fiber.StatusBadRequest, in, []string{"Invalid form data"})
	}

	in.Title = strings.TrimSpace(in.Title)

	if err := s.validator.Struct(in); err != nil {
		return s.renderForm(c, fiber.StatusBadRequest, in, handler.ValidationMessages(err))
	}

	target, err := handler.ParseDate(in.TargetDate)
	if err != nil {
		return s.renderForm(c, fiber.StatusBadRequest, in, []string{err.Error()})
	}

	userID := handler.UserID(c)

	bcr, err := s.Workflow.Create(c.UserContext(), workflow.NewBcr{
		Title:            in.Title,
		Description:      in.Description,
		Impact:           in.Impact,
		UrgencyLevel:     in.Urgency,
		Priority:         workflow.PriorityFromUrgency(in.Urgency),
		ImpactAreaValues: in.ImpactAreas,
		RequestedByID:    userID,
		TargetDate:       target,
		UserID:           userID,
	})
	if err != nil {
		return err
	}

	s.audit(c, "create_bcr", bcr, nil)

	return handler.Flash(c, handler.FlashSuccess, bcr.BcrNumber+" created", Path+"/"+bcr.ID)
}

func (s *Service) load(c *fiber.Ctx) (*models.Bcr, error) {
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		return nil, err
	}

	bcr, err := bcrs.Get(s.db, id)

	return bcr, handler.NotFound(err, bcrs.ErrNotFound)
}

// Show renders a BCR with its impacted areas, history and SLA state.
func (s *Service) Show(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	history, err := s.Workflow.History(c.UserContext(), bcr.ID)
	if err != nil {
		return err
	}

	th, err := slasetting.Load(s.db)
	if err != nil {
		return err
	}

	var (
		users    []models.User
		releases []models.Release
	)

	if auth.Can(c, auth.PermBcrWrite) {
		if err := s.db.Where("active = ?", true).Order("username").Find(&users).Error; err != nil {
			return err
		}

		if releases, err = release.Assignable(s.db); err != nil {
			return err
		}
	}

	nav := navFor(bcr.BcrNumber, "show").AddBreadcrumb(bcr.BcrNumber, Path+"/"+bcr.ID, true)

	return c.Render(TemplateShow, fiber.Map{
		"Navigation": nav,
		"Bcr":        bcr,
		"History":    history,
		"SLA":        workflow.EvaluateSLA(bcr, time.Now(), th),
		"Phase":      workflow.CurrentPhase(bcr.Status),
		"Terminal":   workflow.IsTerminal(bcr.Status),
		"Users":      users,
		"Releases":   releases,
	}, handler.BaseLayout)
}

// UpdateForm is the phase update form.
type UpdateForm struct {
	Phase     int    `form:"phase"     validate:"required,min=1,max=14"`
	Completed string `form:"completed" validate:"required,oneof=yes no"`
	Comment   string `form:"comment"   validate:"max=2000"`
}

func (s *Service) renderUpdate(c *fiber.Ctx, status int, bcr *models.Bcr, in UpdateForm, errs []string) error {
	nav := navFor("Update "+bcr.BcrNumber, "update").
		AddBreadcrumb(bcr.BcrNumber, Path+"/"+bcr.ID, false).
		AddBreadcrumb("Update", Path+"/"+bcr.ID+"/update", true)

	return c.Status(status).Render(TemplateUpdate, fiber.Map{
		"Navigation": nav,
		"Bcr":        bcr,
		"Form":       in,
		"Phases":     workflow.Phases,
		"Errors":     errs,
	}, handler.BaseLayout)
}

// UpdateForm shows the phase update form preset to the current phase.
func (s *Service) UpdateForm(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	return s.renderUpdate(c, fiber.StatusOK, bcr, UpdateForm{Phase: max(workflow.CurrentPhase(bcr.Status), 1)}, nil)
}

// Update applies a phase update and redirects to the confirmation page.
func (s *Service) Update(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	in := UpdateForm{}
	if err := c.BodyParser(&in); err != nil {
		return s.renderUpdate(c, fiber.StatusBadRequest, bcr, in, []string{"Invalid form data"})
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderUpdate(c, fiber.StatusBadRequest, bcr, in, handler.ValidationMessages(err))
	}

	updated, err := s.Workflow.UpdatePhase(c.UserContext(), workflow.UpdateRequest{
		BcrID:     bcr.ID,
		Phase:     in.Phase,
		Completed: in.Completed == "yes",
		Comment:   strings.TrimSpace(in.Comment),
		UserID:    handler.UserID(c),
	})

	switch {
	case errors.Is(err, workflow.ErrUnknownPhase),
		errors.Is(err, workflow.ErrUnknownStatus),
		errors.Is(err, workflow.ErrTerminal):
		return s.renderUpdate(c, fiber.StatusBadRequest, bcr, in, []string{capitalise(err.Error())})
	case err != nil:
		return handler.NotFound(err, workflow.ErrBcrNotFound)
	}

	s.audit(c, "update_bcr_phase", updated, fiber.Map{
		"phase": in.Phase, "completed": in.Completed == "yes", "status": updated.Status,
	})

	return c.Redirect(Path + "/" + updated.ID + "/confirm")
}

// Confirm shows the outcome of an update.
func (s *Service) Confirm(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	nav := navFor("Update confirmed", "confirm").AddBreadcrumb(bcr.BcrNumber, Path+"/"+bcr.ID, true)

	return c.Render(TemplateConfirm, fiber.Map{
		"Navigation": nav,
		"Bcr":        bcr,
		"Phase":      workflow.CurrentPhase(bcr.Status),
	}, handler.BaseLayout)
}

// Warning asks for confirmation before a BCR is closed or rejected.
func (s *Service) Warning(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	if workflow.IsTerminal(bcr.Status) {
		return handler.Flash(c, handler.FlashInfo, bcr.BcrNumber+" is already closed", Path+"/"+bcr.ID)
	}

	nav := navFor("Close "+bcr.BcrNumber, "warning").
		AddBreadcrumb(bcr.BcrNumber, Path+"/"+bcr.ID, false).
		AddBreadcrumb("Close", Path+"/"+bcr.ID+"/warning", true)

	return c.Render(TemplateWarning, fiber.Map{
		"Navigation": nav,
		"Bcr":        bcr,
	}, handler.BaseLayout)
}

// CloseForm closes or rejects a BCR.
type CloseForm struct {
	Outcome string `form:"outcome" validate:"omitempty,oneof=close reject"`
	Comment string `form:"comment" validate:"max=2000"`
}

// Close closes or rejects a BCR.
func (s *Service) Close(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	in := CloseForm{}
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, strings.Join(handler.ValidationMessages(err), "; "))
	}

	terminate, action, verb := s.Workflow.Close, "close_bcr", "closed"
	if in.Outcome == "reject" {
		terminate, action, verb = s.Workflow.Reject, "reject_bcr", "rejected"
	}

	closed, err := terminate(c.UserContext(), bcr.ID, handler.UserID(c), strings.TrimSpace(in.Comment))
	if errors.Is(err, workflow.ErrTerminal) {
		return handler.Flash(c, handler.FlashError, bcr.BcrNumber+" is already closed", Path+"/"+bcr.ID)
	}
	if err != nil {
		return err
	}

	s.audit(c, action, closed, nil)

	return handler.Flash(c, handler.FlashSuccess, closed.BcrNumber+" "+verb, Path+"/"+closed.ID)
}

// AddNote appends a note to the BCR.
func (s *Service) AddNote(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	note := strings.TrimSpace(c.FormValue("note"))
	if note == "" {
		return handler.Flash(c, handler.FlashError, "Note cannot be empty", Path+"/"+bcr.ID)
	}

	if err := s.Workflow.AddNote(c.UserContext(), bcr.ID, handler.Username(c), note); err != nil {
		return err
	}

	s.audit(c, "add_bcr_note", bcr, nil)

	return handler.Flash(c, handler.FlashSuccess, "Note added", Path+"/"+bcr.ID)
}

// Assign sets the assignee. An empty assignee clears it.
func (s *Service) Assign(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	var assignee *uint64

	if raw := c.FormValue("assignee_id"); raw != "" && raw != "0" {
		var user models.User
		if err := s.db.Where("id = ? AND active = ?", raw, true).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return handler.Flash(c, handler.FlashError, "Unknown or inactive user", Path+"/"+bcr.ID)
			}

			return err
		}

		assignee = &user.ID
	}

	updated, err := s.Workflow.Assign(c.UserContext(), bcr.ID, assignee, handler.UserID(c))
	if err != nil {
		return err
	}

	s.audit(c, "assign_bcr", updated, fiber.Map{"assignee_id": assignee})

	return handler.Flash(c, handler.FlashSuccess, "Assignee updated", Path+"/"+updated.ID)
}

// AssignRelease schedules the BCR for a release; an empty release_id unschedules it.
func (s *Service) AssignRelease(c *fiber.Ctx) error {
	bcr, err := s.load(c)
	if err != nil {
		return err
	}

	var releaseID *uint64

	if raw := c.FormValue("release_id"); raw != "" && raw != "0" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid release")
		}

		releaseID = &id
	}

	updated, err := s.Workflow.AssignRelease(c.UserContext(), bcr.ID, releaseID, c.FormValue("comment"), handler.UserID(c))

	switch {
	case errors.Is(err, workflow.ErrReleaseNotFound), errors.Is(err, workflow.ErrTerminal):
		return handler.Flash(c, handler.FlashError, capitalise(err.Error()), Path+"/"+bcr.ID)
	case err != nil:
		return handler.NotFound(err, workflow.ErrBcrNotFound)
	}

	msg := "Removed from release"
	if updated.Release != nil {
		msg = "Scheduled for release " + updated.Release.ReleaseCode
	}

	s.audit(c, "assign_bcr_release", updated, fiber.Map{"release_id": releaseID})

	return handler.Flash(c, handler.FlashSuccess, msg, Path+"/"+updated.ID)
}

func (s *Service) audit(c *fiber.Ctx, action string, bcr *models.Bcr, details fiber.Map) {
	if details == nil {
		details = fiber.Map{}
	}

	details["bcr_number"] = bcr.BcrNumber

	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   bcr.ID,
		Details:      details,
	})
}

func capitalise(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
