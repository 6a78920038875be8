// Package funding provides the funding requirement pages and CSV export.
package funding

import (
	"encoding/csv"
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
	"github.com/dfe-rrdm/rrdm/internal/db/controller/funding"
	"github.com/dfe-rrdm/rrdm/internal/db/dberr"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// Path is the base path of funding pages.
	Path = handler.RootPath + "funding"
	// RequirementsPath lists funding requirements.
	RequirementsPath = Path + "/requirements"
	// HistoryPath lists funding history.
	HistoryPath = Path + "/history"
	// ExportPath downloads requirements as CSV.
	ExportPath = RequirementsPath + ".csv"

	// TemplateList lists requirements.
	TemplateList = "funding/list"
	// TemplateForm creates or edits a requirement.
	TemplateForm = "funding/form"
	// TemplateHistory lists history entries.
	TemplateHistory = "funding/history"
)

// Service handles funding requirements.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the funding handler.
var Handler = Service{}

// Form is the funding requirement form. Amount is in pounds.
type Form struct {
	Route       string `form:"route"       validate:"required,max=100"`
	Year        int    `form:"year"        validate:"required,min=2000,max=2100"`
	Amount      string `form:"amount"      validate:"required"`
	Description string `form:"description" validate:"max=2000"`
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

	read := auth.RequirePermission(authService, auth.PermFundingRead)
	write := auth.RequirePermission(authService, auth.PermFundingWrite)

	app.Get(Path, read, func(c *fiber.Ctx) error { return c.Redirect(RequirementsPath) })
	app.Get(ExportPath, read, s.Export)
	app.Get(HistoryPath, read, s.History)

	app.Route(RequirementsPath, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.List)
		router.Post(handler.RouterRootPath, write, s.Create)
		router.Get("/new", write, s.New)
		router.Get("/:id/edit", write, s.Edit)
		router.Post("/:id", write, s.Update)
		router.Post("/:id/delete", write, s.Delete)
	})
}

func navFor(title, page string) *navigation.Context {
	return navigation.NewContext(title, "funding", page).
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Funding", RequirementsPath, page == "requirements")
}

func filterFrom(c *fiber.Ctx) funding.Filter {
	return funding.Filter{Route: c.Query("route"), Year: c.Query("year")}
}

// List shows requirements with the route and year filters.
func (s *Service) List(c *fiber.Ctx) error {
	f := filterFrom(c)

	rows, err := funding.List(s.db, f)
	if err != nil {
		return err
	}

	routes, err := funding.Routes(s.db)
	if err != nil {
		return err
	}

	years, err := funding.Years(s.db)
	if err != nil {
		return err
	}

	return c.Render(TemplateList, fiber.Map{
		"Navigation": navFor("Funding requirements", "requirements"),
		"Rows":       rows,
		"Routes":     routes,
		"Years":      years,
		"Filter":     f,
		"ExportURL":  ExportPath + "?" + string(c.Request().URI().QueryString()),
		"CanEdit":    auth.Can(c, auth.PermFundingWrite),
	}, handler.BaseLayout)
}

// History shows the change history.
func (s *Service) History(c *fiber.Ctx) error {
	f := filterFrom(c)

	rows, err := funding.History(s.db, f)
	if err != nil {
		return err
	}

	routes, err := funding.Routes(s.db)
	if err != nil {
		return err
	}

	return c.Render(TemplateHistory, fiber.Map{
		"Navigation": navFor("Funding history", "history").AddBreadcrumb("History", HistoryPath, true),
		"Rows":       rows,
		"Routes":     routes,
		"Filter":     f,
	}, handler.BaseLayout)
}

// Export writes the filtered requirements as CSV.
func (s *Service) Export(c *fiber.Ctx) error {
	rows, err := funding.List(s.db, filterFrom(c))
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Attachment("funding-requirements-" + time.Now().Format("20060102") + ".csv")

	w := csv.NewWriter(c.Response().BodyWriter())
	if err := w.Write([]string{"Route", "Year", "Amount", "Description", "Updated"}); err != nil {
		return err
	}

	for _, r := range rows {
		if err := w.Write([]string{
			r.Route,
			strconv.Itoa(r.Year),
			r.AmountPounds(),
			r.Description,
			r.UpdatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}

	w.Flush()

	return w.Error()
}

func (s *Service) renderForm(c *fiber.Ctx, status int, id uint64, in Form, errs []string) error {
	title, action := "New funding requirement", RequirementsPath
	if id > 0 {
		title, action = "Edit funding requirement", RequirementsPath+"/"+strconv.FormatUint(id, 10)
	}

	return c.Status(status).Render(TemplateForm, fiber.Map{
		"Navigation": navFor(title, "requirements").AddBreadcrumb(title, action, true),
		"Form":       in,
		"Action":     action,
		"IsCreate":   id == 0,
		"Errors":     errs,
	}, handler.BaseLayout)
}

func (s *Service) parse(c *fiber.Ctx) (Form, funding.Input, []string) {
	in := Form{}
	if err := c.BodyParser(&in); err != nil {
		return in, funding.Input{}, []string{"Invalid form data"}
	}

	in.Route = strings.TrimSpace(in.Route)

	if err := s.validator.Struct(in); err != nil {
		return in, funding.Input{}, handler.ValidationMessages(err)
	}

	pence, err := funding.ParseAmount(in.Amount)
	if err != nil {
		return in, funding.Input{}, []string{"Amount must be a number of pounds, e.g. 1250.00"}
	}

	return in, funding.Input{
		Route:       in.Route,
		Year:        in.Year,
		Amount:      pence,
		Description: strings.TrimSpace(in.Description),
	}, nil
}

// New shows an empty form.
func (s *Service) New(c *fiber.Ctx) error {
	return s.renderForm(c, fiber.StatusOK, 0, Form{Year: time.Now().Year()}, nil)
}

// Create stores a requirement. Route and year are unique together.
func (s *Service) Create(c *fiber.Ctx) error {
	in, input, errs := s.parse(c)
	if errs != nil {
		return s.renderForm(c, fiber.StatusBadRequest, 0, in, errs)
	}

	f, err := funding.Create(s.db, input, handler.UserID(c))
	if dberr.IsDuplicate(err) {
		return s.renderForm(c, fiber.StatusConflict, 0, in, []string{dberr.MsgDuplicate})
	}
	if err != nil {
		return err
	}

	s.audit(c, "create_funding", f)

	return handler.Flash(c, handler.FlashSuccess, "Funding requirement created", RequirementsPath)
}

func (s *Service) load(c *fiber.Ctx) (*models.Funding, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	f, err := funding.Get(s.db, id)

	return f, handler.NotFound(err, funding.ErrNotFound)
}

// Edit shows the form for an existing requirement.
func (s *Service) Edit(c *fiber.Ctx) error {
	f, err := s.load(c)
	if err != nil {
		return err
	}

	return s.renderForm(c, fiber.StatusOK, f.ID, Form{
		Route:       f.Route,
		Year:        f.Year,
		Amount:      f.AmountPounds(),
		Description: f.Description,
	}, nil)
}

// Update saves a requirement.
func (s *Service) Update(c *fiber.Ctx) error {
	f, err := s.load(c)
	if err != nil {
		return err
	}

	in, input, errs := s.parse(c)
	if errs != nil {
		return s.renderForm(c, fiber.StatusBadRequest, f.ID, in, errs)
	}

	updated, err := funding.Update(s.db, f.ID, input, handler.UserID(c))
	if dberr.IsDuplicate(err) {
		return s.renderForm(c, fiber.StatusConflict, f.ID, in, []string{dberr.MsgDuplicate})
	}
	if err != nil {
		return handler.NotFound(err, funding.ErrNotFound)
	}

	s.audit(c, "update_funding", updated)

	return handler.Flash(c, handler.FlashSuccess, "Funding requirement updated", RequirementsPath)
}

// Delete removes a requirement, keeping its history.
func (s *Service) Delete(c *fiber.Ctx) error {
	f, err := s.load(c)
	if err != nil {
		return err
	}

	if err := funding.Delete(s.db, f.ID, handler.UserID(c)); err != nil {
		return handler.NotFound(err, funding.ErrNotFound)
	}

	s.audit(c, "delete_funding", f)

	return handler.Flash(c, handler.FlashSuccess, "Funding requirement deleted", RequirementsPath)
}

func (s *Service) audit(c *fiber.Ctx, action string, f *models.Funding) {
	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: "funding",
		ResourceID:   strconv.FormatUint(f.ID, 10),
		Details:      fiber.Map{"route": f.Route, "year": f.Year, "amount": f.AmountPounds()},
	})
}
