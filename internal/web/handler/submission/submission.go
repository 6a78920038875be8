// Package submission provides the BCR submission form and the review pages.
package submission

import (
	"errors"
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
	"github.com/dfe-rrdm/rrdm/internal/db/controller/submission"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

const (
	// SubmitPath is the submission form.
	SubmitPath = handler.RootPath + "bcr/submit"
	// Path is the base path of the submission list.
	Path = handler.RootPath + "bcr/submissions"

	// TemplateForm is the submission form.
	TemplateForm = "submission/form"
	// TemplateThanks confirms a submission.
	TemplateThanks = "submission/thanks"
	// TemplateList lists submissions.
	TemplateList = "submission/list"
	// TemplateShow shows one submission.
	TemplateShow = "submission/show"
	// TemplateReview is the review form.
	TemplateReview = "submission/review"

	bcrPath      = handler.RootPath + "bcr/"
	resourceType = "submission"
	showDeleted  = "deleted"
)

// Service handles submissions.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate

	// Workflow creates the BCR of an approved submission. Set before Init.
	Workflow *workflow.Service
}

// Handler is the submission handler.
var Handler = Service{}

// Init registers the submission routes. It must run before the BCR routes so
// that /bcr/submissions is not taken for a BCR id.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if s.Workflow == nil {
		log.Fatal().Msg("submission handler needs a workflow service")
		return
	}

	s.cfg = cfg
	s.db = db
	s.validator = validator.New()

	submit := auth.RequirePermission(authService, auth.PermBcrRead)
	read := auth.RequirePermission(authService, auth.PermSubmissionRead)
	review := auth.RequirePermission(authService, auth.PermSubmissionReview)

	app.Get(SubmitPath, submit, s.New)
	app.Post(SubmitPath, submit, s.Create)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.List)
		router.Get("/:id", read, s.Show)
		router.Get("/:id/review", review, s.ReviewForm)
		router.Post("/:id/review", review, s.Review)
		router.Post("/:id/delete", review, s.Delete)
		router.Post("/:id/reinstate", review, s.Reinstate)
	})
}

func navFor(title, page string) *navigation.Context {
	return navigation.NewContext(title, "submission", page).
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Submissions", Path, page == "list")
}

// Form is the BCR submission form.
type Form struct {
	FullName              string   `form:"full_name"              validate:"required,max=60"`
	EmailAddress          string   `form:"email_address"          validate:"required,email,max=80"`
	SubmissionSource      string   `form:"submission_source"      validate:"required,oneof=Internal External Other"`
	Organisation          string   `form:"organisation"           validate:"max=255"`
	BriefDescription      string   `form:"brief_description"      validate:"required,max=500"`
	Justification         string   `form:"justification"          validate:"required,max=5000"`
	UrgencyLevel          string   `form:"urgency_level"          validate:"required,oneof=Low Medium High Critical Unknown"`
	ImpactAreas           []string `form:"impact_areas"           validate:"required,dive,max=100"`
	TechnicalDependencies string   `form:"technical_dependencies" validate:"max=5000"`
	RelatedDocuments      string   `form:"related_documents"      validate:"max=5000"`
	AdditionalNotes       string   `form:"additional_notes"       validate:"max=5000"`
	Declaration           bool     `form:"declaration"            validate:"eq=true"`
}

func (s *Service) renderForm(c *fiber.Ctx, status int, in Form, errs []string) error {
	areas, err := bcrconfig.ListByType(s.db, models.ConfigTypeImpactArea)
	if err != nil {
		return err
	}

	nav := navigation.NewContext("Submit a BCR", "submission", "submit").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Submit a BCR", SubmitPath, true)

	return c.Status(status).Render(TemplateForm, fiber.Map{
		"Navigation":  nav,
		"Form":        in,
		"ImpactAreas": areas,
		"Urgencies":   workflow.UrgencyLevels,
		"Sources":     []string{models.SourceInternal, models.SourceExternal, models.SourceOther},
		"Errors":      errs,
	}, handler.BaseLayout)
}

// New shows the submission form, prefilled with the user's details.
func (s *Service) New(c *fiber.Ctx) error {
	in := Form{SubmissionSource: models.SourceInternal, UrgencyLevel: "Medium"}

	if u, ok := handler.CurrentUser(c); ok {
		in.FullName = u.FullName()
		in.EmailAddress = u.Email
	}

	return s.renderForm(c, fiber.StatusOK, in, nil)
}

// Create stores a pending submission.
func (s *Service) Create(c *fiber.Ctx) error {
	in := Form{}
	if err := c.BodyParser(&in); err != nil {
		return s.renderForm(c, fiber.StatusBadRequest, in, []string{"Invalid form data"})
	}

	in.FullName = strings.TrimSpace(in.FullName)
	in.EmailAddress = strings.TrimSpace(in.EmailAddress)
	in.BriefDescription = strings.TrimSpace(in.BriefDescription)

	if err := s.validator.Struct(in); err != nil {
		return s.renderForm(c, fiber.StatusBadRequest, in, handler.ValidationMessages(err))
	}

	sub := &models.Submission{
		FullName:              in.FullName,
		EmailAddress:          in.EmailAddress,
		SubmissionSource:      in.SubmissionSource,
		Organisation:          in.Organisation,
		BriefDescription:      in.BriefDescription,
		Justification:         in.Justification,
		UrgencyLevel:          in.UrgencyLevel,
		ImpactAreas:           strings.Join(in.ImpactAreas, ","),
		TechnicalDependencies: in.TechnicalDependencies,
		RelatedDocuments:      in.RelatedDocuments,
		AdditionalNotes:       in.AdditionalNotes,
		Declaration:           in.Declaration,
		SubmittedByID:         handler.UserID(c),
	}

	if err := submission.Create(s.db, sub, time.Now()); err != nil {
		return err
	}

	s.audit(c, "create_submission", sub, nil)

	nav := navigation.NewContext("Submission received", "submission", "submit").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Submission received", SubmitPath, true)

	return c.Render(TemplateThanks, fiber.Map{
		"Navigation": nav,
		"Submission": sub,
	}, handler.BaseLayout)
}

// List shows submissions. Deleted ones are listed only with show=deleted.
func (s *Service) List(c *fiber.Ctx) error {
	page, pageSize := handler.QueryPage(c)

	f := submission.Filter{
		Status:      c.Query("status"),
		Search:      c.Query("search"),
		ShowDeleted: c.Query("show") == showDeleted,
		Page:        page,
		PageSize:    pageSize,
	}

	list, total, err := submission.List(s.db, f)
	if err != nil {
		return err
	}

	return c.Render(TemplateList, fiber.Map{
		"Navigation":  navFor("Submissions", "list"),
		"Submissions": list,
		"Filter":      f,
		"Pagination":  handler.NewPage(page, pageSize, total),
		"Statuses": []string{
			models.SubmissionPending, models.SubmissionApproved, models.SubmissionRejected,
			models.SubmissionMoreInfoRequired, models.SubmissionPaused, models.SubmissionClosed,
		},
	}, handler.BaseLayout)
}

func (s *Service) load(c *fiber.Ctx) (*models.Submission, error) {
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		return nil, err
	}

	sub, err := submission.Get(s.db, id, true)

	return sub, handler.NotFound(err, submission.ErrNotFound)
}

// Show renders one submission and the BCR created from it, if any.
func (s *Service) Show(c *fiber.Ctx) error {
	sub, err := s.load(c)
	if err != nil {
		return err
	}

	bcr, err := bcrs.GetBySubmission(s.db, sub.ID)
	if err != nil && !errors.Is(err, bcrs.ErrNotFound) {
		return err
	}

	nav := navFor(sub.SubmissionCode, "show").AddBreadcrumb(sub.SubmissionCode, Path+"/"+sub.ID, true)

	return c.Render(TemplateShow, fiber.Map{
		"Navigation": nav,
		"Submission": sub,
		"Areas":      submission.SplitAreas(sub.ImpactAreas),
		"Bcr":        bcr,
		"Deleted":    sub.DeletedAt.Valid,
	}, handler.BaseLayout)
}

// ReviewForm is the reviewer's decision.
type ReviewForm struct {
	Outcome  string `form:"outcome"  validate:"required,oneof=approve reject more-info pause close"`
	Comments string `form:"comments" validate:"max=5000"`
}

func (s *Service) renderReview(c *fiber.Ctx, status int, sub *models.Submission, in ReviewForm, errs []string) error {
	nav := navFor("Review "+sub.SubmissionCode, "review").
		AddBreadcrumb(sub.SubmissionCode, Path+"/"+sub.ID, false).
		AddBreadcrumb("Review", Path+"/"+sub.ID+"/review", true)

	return c.Status(status).Render(TemplateReview, fiber.Map{
		"Navigation": nav,
		"Submission": sub,
		"Form":       in,
		"Errors":     errs,
	}, handler.BaseLayout)
}

// ReviewForm shows the review form.
func (s *Service) ReviewForm(c *fiber.Ctx) error {
	sub, err := s.load(c)
	if err != nil {
		return err
	}

	if sub.DeletedAt.Valid {
		return handler.Flash(c, handler.FlashError, submission.ErrDeleted.Error(), Path+"/"+sub.ID)
	}

	return s.renderReview(c, fiber.StatusOK, sub, ReviewForm{Comments: sub.ReviewComments}, nil)
}

// Review applies the review outcome. Approval redirects to the new BCR.
func (s *Service) Review(c *fiber.Ctx) error {
	sub, err := s.load(c)
	if err != nil {
		return err
	}

	in := ReviewForm{}
	if err := c.BodyParser(&in); err != nil {
		return s.renderReview(c, fiber.StatusBadRequest, sub, in, []string{"Invalid form data"})
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderReview(c, fiber.StatusBadRequest, sub, in, handler.ValidationMessages(err))
	}

	reviewed, bcr, err := submission.ApplyReview(c.UserContext(), s.db, s.Workflow, sub.ID, submission.Review{
		Outcome:  in.Outcome,
		Comments: strings.TrimSpace(in.Comments),
		UserID:   handler.UserID(c),
	})
	if errors.Is(err, submission.ErrDeleted) {
		return s.renderReview(c, fiber.StatusConflict, sub, in, []string{"This submission has been deleted and cannot be reviewed"})
	}
	if err != nil {
		return handler.NotFound(err, submission.ErrNotFound)
	}

	details := fiber.Map{"outcome": in.Outcome}
	if bcr != nil {
		details["bcr_number"] = bcr.BcrNumber
	}

	s.audit(c, "review_submission", reviewed, details)

	if bcr != nil {
		return handler.Flash(c, handler.FlashSuccess,
			reviewed.SubmissionCode+" approved as "+bcr.BcrNumber, bcrPath+bcr.ID)
	}

	return handler.Flash(c, handler.FlashSuccess,
		reviewed.SubmissionCode+" marked "+reviewed.Status, Path+"/"+reviewed.ID)
}

// Delete soft deletes a submission.
func (s *Service) Delete(c *fiber.Ctx) error {
	sub, err := s.load(c)
	if err != nil {
		return err
	}

	if err := submission.Delete(s.db, sub.ID); err != nil {
		return handler.NotFound(err, submission.ErrNotFound)
	}

	s.audit(c, "delete_submission", sub, nil)

	return handler.Flash(c, handler.FlashSuccess, sub.SubmissionCode+" deleted", Path)
}

// Reinstate restores a deleted submission.
func (s *Service) Reinstate(c *fiber.Ctx) error {
	sub, err := s.load(c)
	if err != nil {
		return err
	}

	err = submission.Reinstate(s.db, sub.ID)
	if errors.Is(err, submission.ErrNotDeleted) {
		return handler.Flash(c, handler.FlashInfo, sub.SubmissionCode+" is not deleted", Path+"/"+sub.ID)
	}
	if err != nil {
		return err
	}

	s.audit(c, "reinstate_submission", sub, nil)

	return handler.Flash(c, handler.FlashSuccess, sub.SubmissionCode+" reinstated", Path+"/"+sub.ID)
}

func (s *Service) audit(c *fiber.Ctx, action string, sub *models.Submission, details fiber.Map) {
	if details == nil {
		details = fiber.Map{}
	}

	details["submission_code"] = sub.SubmissionCode

	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   sub.ID,
		Details:      details,
	})
}
