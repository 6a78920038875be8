// Package api provides the JSON API under /api/v1.
//
// Every success response is {"success": true, "data": ...}; paged lists add
// "pagination". Errors are rendered by the central error handler.
package api

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/academicyear"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	bcrs "github.com/dfe-rrdm/rrdm/internal/db/controller/bcr"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/funding"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/refdata"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/release"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

const (
	// Path is the API root.
	Path = handler.RootPath + "api/v1"

	defaultRateMax    = 100
	defaultRateWindow = time.Minute
)

// Service serves the JSON API.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	local     *auth.LocalProvider
	validator *validator.Validate

	// Workflow applies phase changes. Set before Init.
	Workflow *workflow.Service
	// Store backs the rate limiter. Nil uses the limiter's in-memory store.
	Store fiber.Storage
}

// Handler is the API handler.
var Handler = Service{}

// UpdateRequest is the body of POST /bcrs/:id/update.
type UpdateRequest struct {
	Phase     int    `json:"phase"     validate:"required,min=1,max=14"`
	Completed bool   `json:"completed"`
	Comment   string `json:"comment"   validate:"max=5000"`
}

// Pagination describes a page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// Init registers the routes behind the per-IP rate limiter.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if s.Workflow == nil {
		log.Fatal().Msg("api handler needs a workflow service")
		return
	}

	s.cfg = cfg
	s.db = db
	s.local = auth.NewLocalProvider(db)
	s.validator = validator.New()

	perm := func(p string) fiber.Handler { return auth.RequirePermission(authService, p) }

	app.Route(Path, func(router fiber.Router) {
		router.Use(s.rateLimiter())

		router.Get("/bcrs", perm(auth.PermBcrRead), s.ListBcrs)
		router.Get("/bcrs/:id", perm(auth.PermBcrRead), s.GetBcr)
		router.Post("/bcrs/:id/update", perm(auth.PermBcrWrite), s.UpdateBcr)
		router.Get("/items", perm(auth.PermRefDataRead), s.ListItems)
		router.Get("/items/:id/values", perm(auth.PermRefDataRead), s.ListValues)
		router.Get("/funding/requirements", perm(auth.PermFundingRead), s.ListFunding)
		router.Get("/funding/history", perm(auth.PermFundingRead), s.FundingHistory)
		router.Get("/academic-years", perm(auth.PermReleaseRead), s.ListAcademicYears)
		router.Get("/releases", perm(auth.PermReleaseRead), s.ListReleases)
		router.Get("/user/profile", s.Profile)
	})
}

func (s *Service) rateLimiter() fiber.Handler {
	limit, window := defaultRateMax, defaultRateWindow
	if s.cfg.Webserver.RateLimit.APIMax > 0 {
		limit = s.cfg.Webserver.RateLimit.APIMax
	}

	if s.cfg.Webserver.RateLimit.APIWindow > 0 {
		window = s.cfg.Webserver.RateLimit.APIWindow
	}

	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		Storage:    s.Store,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "api:" + c.IP()
		},
		LimitReached: func(_ *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later")
		},
	})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func okPage(c *fiber.Ctx, data any, page, pageSize int, total int64) error {
	p := handler.NewPage(page, pageSize, total)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": Pagination{
			Page:       p.Page,
			PageSize:   p.PageSize,
			TotalItems: p.TotalItems,
			TotalPages: p.TotalPages,
		},
	})
}

// ListBcrs returns one page of BCRs.
func (s *Service) ListBcrs(c *fiber.Ctx) error {
	page, pageSize := handler.QueryPage(c)

	list, total, err := bcrs.List(s.db, bcrs.Filter{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Phase:    c.QueryInt("phase", 0),
		Urgency:  c.Query("urgency"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return err
	}

	return okPage(c, list, page, pageSize, total)
}

// GetBcr returns a BCR with its SLA state and history.
func (s *Service) GetBcr(c *fiber.Ctx) error {
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	bcr, err := bcrs.Get(s.db, id)
	if err != nil {
		return handler.NotFound(err, bcrs.ErrNotFound)
	}

	history, err := s.Workflow.History(c.UserContext(), bcr.ID)
	if err != nil {
		return err
	}

	return ok(c, fiber.Map{
		"bcr":     bcr,
		"history": history,
		"phase":   workflow.CurrentPhase(bcr.Status),
		"label":   workflow.StatusLabel(bcr.Status),
	})
}

// UpdateBcr applies a phase update through the workflow service.
func (s *Service) UpdateBcr(c *fiber.Ctx) error {
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	in := UpdateRequest{}
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := s.validator.Struct(in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, strings.Join(handler.ValidationMessages(err), "; "))
	}

	updated, err := s.Workflow.UpdatePhase(c.UserContext(), workflow.UpdateRequest{
		BcrID:     id,
		Phase:     in.Phase,
		Completed: in.Completed,
		Comment:   strings.TrimSpace(in.Comment),
		UserID:    handler.UserID(c),
	})

	switch {
	case errors.Is(err, workflow.ErrUnknownPhase),
		errors.Is(err, workflow.ErrUnknownStatus),
		errors.Is(err, workflow.ErrTerminal):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case err != nil:
		return handler.NotFound(err, workflow.ErrBcrNotFound)
	}

	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       "update_bcr_phase",
		ResourceType: "bcr",
		ResourceID:   updated.ID,
		Details:      fiber.Map{"phase": in.Phase, "completed": in.Completed, "status": updated.Status, "via": "api"},
	})

	return ok(c, updated)
}

// ListItems returns one page of reference data items.
func (s *Service) ListItems(c *fiber.Ctx) error {
	page, pageSize := handler.QueryPage(c)

	items, total, err := refdata.ListItems(s.db, refdata.ItemFilter{
		Search:         c.Query("search"),
		Category:       c.Query("category"),
		Status:         c.Query("status"),
		AcademicYearID: uint(c.QueryInt("year", 0)),
		Page:           page,
		PageSize:       pageSize,
	})
	if err != nil {
		return err
	}

	return okPage(c, items, page, pageSize, total)
}

// ListValues returns the values of an item.
func (s *Service) ListValues(c *fiber.Ctx) error {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return err
	}

	if _, err := refdata.GetItem(s.db, id); err != nil {
		return handler.NotFound(err, refdata.ErrItemNotFound)
	}

	values, err := refdata.ListValues(s.db, id)
	if err != nil {
		return err
	}

	return ok(c, values)
}

// ListFunding returns funding requirements filtered by route and year.
func (s *Service) ListFunding(c *fiber.Ctx) error {
	rows, err := funding.List(s.db, funding.Filter{Route: c.Query("route"), Year: c.Query("year")})
	if err != nil {
		return err
	}

	return ok(c, rows)
}

// FundingHistory returns the funding change history.
func (s *Service) FundingHistory(c *fiber.Ctx) error {
	rows, err := funding.History(s.db, funding.Filter{Route: c.Query("route"), Year: c.Query("year")})
	if err != nil {
		return err
	}

	return ok(c, rows)
}

// ListAcademicYears returns academic years, optionally by status.
func (s *Service) ListAcademicYears(c *fiber.Ctx) error {
	years, err := academicyear.List(s.db, c.Query("status"))
	if err != nil {
		return err
	}

	return ok(c, years)
}

// ListReleases returns releases, optionally for one academic year.
func (s *Service) ListReleases(c *fiber.Ctx) error {
	rows, err := release.List(s.db, release.Filter{
		AcademicYearID: uint(c.QueryInt("year", 0)),
		Status:         c.Query("status"),
		Type:           c.Query("type"),
	})
	if err != nil {
		return err
	}

	return ok(c, rows)
}

// Profile returns the logged in user with role and permissions.
func (s *Service) Profile(c *fiber.Ctx) error {
	id := handler.UserID(c)
	if id == nil {
		return fiber.ErrUnauthorized
	}

	u, err := s.local.GetUserByID(*id)
	if err != nil {
		return handler.NotFound(err, auth.ErrUserNotFound)
	}

	perms, _ := c.Locals(auth.LocalsPermissions).([]string)

	return ok(c, fiber.Map{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"firstName":   u.FirstName,
		"lastName":    u.LastName,
		"fullName":    u.FullName(),
		"role":        u.Role.Name,
		"authSource":  u.AuthSource,
		"lastLoginAt": u.LastLoginAt,
		"permissions": perms,
	})
}
