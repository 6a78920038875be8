// Package refdata provides the reference data pages: items, their values and
// restore points.
package refdata

import (
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
	"github.com/dfe-rrdm/rrdm/internal/db/controller/refdata"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// ItemsPath is the base path of reference data items.
	ItemsPath = handler.RootPath + "items"
	// ValuesPath is the base path of reference values.
	ValuesPath = handler.RootPath + "values"
	// RestorePointsPath lists restore points.
	RestorePointsPath = ItemsPath + "/restore-points"

	// TemplateItemList lists items.
	TemplateItemList = "refdata/items"
	// TemplateItemShow shows one item.
	TemplateItemShow = "refdata/item"
	// TemplateItemForm creates or edits an item.
	TemplateItemForm = "refdata/item-form"
	// TemplateItemHistory lists the versions of an item.
	TemplateItemHistory = "refdata/history"
	// TemplateValueList lists the values of an item.
	TemplateValueList = "refdata/values"
	// TemplateValueForm creates or edits a value.
	TemplateValueForm = "refdata/value-form"
	// TemplateRestorePoints lists restore points.
	TemplateRestorePoints = "refdata/restore-points"
)

// Service handles the reference data pages.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the reference data handler.
var Handler = Service{}

// Init registers the item, value and restore point routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.validator = validator.New()

	read := auth.RequirePermission(authService, auth.PermRefDataRead)
	write := auth.RequirePermission(authService, auth.PermRefDataWrite)

	app.Route(ItemsPath, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.ListItems)
		router.Post(handler.RouterRootPath, write, s.CreateItem)
		router.Get("/new", write, s.NewItem)
		router.Get("/restore-points", read, s.ListRestorePoints)
		router.Post("/restore-points", write, s.CreateRestorePoint)
		router.Post("/restore-points/:id/restore", write, s.Restore)
		router.Get("/:id", read, s.ShowItem)
		router.Get("/:id/edit", write, s.EditItem)
		router.Post("/:id", write, s.UpdateItem)
		router.Post("/:id/delete", write, s.DeleteItem)
		router.Get("/:id/history", read, s.History)
		router.Get("/:id/values", read, s.ListValues)
	})

	app.Route(ValuesPath, func(router fiber.Router) {
		router.Get("/new", write, s.NewValue)
		router.Post(handler.RouterRootPath, write, s.CreateValue)
		router.Get("/:id/edit", write, s.EditValue)
		router.Post("/:id", write, s.UpdateValue)
		router.Post("/:id/delete", write, s.DeleteValue)
	})
}

func navFor(title, page string) *navigation.Context {
	return navigation.NewContext(title, "refdata", page).
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Reference data", ItemsPath, page == "items")
}

func itemURL(id uint64) string {
	return ItemsPath + "/" + strconv.FormatUint(id, 10)
}

// ListItems shows items with search and filters.
func (s *Service) ListItems(c *fiber.Ctx) error {
	page, pageSize := handler.QueryPage(c)

	f := refdata.ItemFilter{
		Search:         c.Query("search"),
		Category:       c.Query("category"),
		Status:         c.Query("status"),
		AcademicYearID: uint(c.QueryInt("year", 0)),
		Page:           page,
		PageSize:       pageSize,
	}

	items, total, err := refdata.ListItems(s.db, f)
	if err != nil {
		return err
	}

	categories, err := refdata.Categories(s.db)
	if err != nil {
		return err
	}

	years, err := academicyear.List(s.db, "")
	if err != nil {
		return err
	}

	return c.Render(TemplateItemList, fiber.Map{
		"Navigation":    navFor("Reference data items", "items"),
		"Items":         items,
		"Filter":        f,
		"Categories":    categories,
		"AcademicYears": years,
		"Statuses":      []string{models.ItemActive, models.ItemInactive, models.ItemDeprecated},
		"Pagination":    handler.NewPage(page, pageSize, total),
	}, handler.BaseLayout)
}

// ItemForm is the item form.
type ItemForm struct {
	Code           string `form:"code"             validate:"required,max=100"`
	Name           string `form:"name"             validate:"required,max=255"`
	Description    string `form:"description"      validate:"max=5000"`
	Category       string `form:"category"         validate:"max=100"`
	Status         string `form:"status"           validate:"required,oneof=Active Inactive Deprecated"`
	AcademicYearID uint   `form:"academic_year_id"`
	ChangeType     string `form:"change_type"      validate:"omitempty,oneof=new updated removed unchanged"`
}

func (f ItemForm) model() models.ReferenceData {
	item := models.ReferenceData{
		Code:        f.Code,
		Name:        f.Name,
		Description: f.Description,
		Category:    f.Category,
		Status:      f.Status,
		ChangeType:  f.ChangeType,
	}

	if f.AcademicYearID > 0 {
		id := f.AcademicYearID
		item.AcademicYearID = &id
	}

	return item
}

func (s *Service) renderItemForm(c *fiber.Ctx, status int, id uint64, in ItemForm, errs []string) error {
	years, err := academicyear.List(s.db, "")
	if err != nil {
		return err
	}

	title, action := "New item", ItemsPath
	if id > 0 {
		title, action = "Edit item", itemURL(id)
	}

	return c.Status(status).Render(TemplateItemForm, fiber.Map{
		"Navigation":    navFor(title, "item-form").AddBreadcrumb(title, action, true),
		"Form":          in,
		"Action":        action,
		"IsCreate":      id == 0,
		"AcademicYears": years,
		"Statuses":      []string{models.ItemActive, models.ItemInactive, models.ItemDeprecated},
		"ChangeTypes": []string{
			models.ChangeNew, models.ChangeUpdated, models.ChangeRemoved, models.ChangeUnchanged,
		},
		"Errors": errs,
	}, handler.BaseLayout)
}

func (s *Service) parseItem(c *fiber.Ctx) (ItemForm, []string) {
	in := ItemForm{}
	if err := c.BodyParser(&in); err != nil {
		return in, []string{"Invalid form data"}
	}

	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)

	if err := s.validator.Struct(in); err != nil {
		return in, handler.ValidationMessages(err)
	}

	return in, nil
}

// NewItem shows an empty item form.
func (s *Service) NewItem(c *fiber.Ctx) error {
	return s.renderItemForm(c, fiber.StatusOK, 0, ItemForm{Status: models.ItemActive}, nil)
}

// CreateItem stores an item.
func (s *Service) CreateItem(c *fiber.Ctx) error {
	in, errs := s.parseItem(c)
	if errs != nil {
		return s.renderItemForm(c, fiber.StatusBadRequest, 0, in, errs)
	}

	item := in.model()
	if err := refdata.CreateItem(s.db, &item); err != nil {
		return err
	}

	s.audit(c, "create_item", "reference_data", item.ID, fiber.Map{"code": item.Code})

	return handler.Flash(c, handler.FlashSuccess, "Item "+item.Code+" created", itemURL(item.ID))
}

func (s *Service) loadItem(c *fiber.Ctx) (*models.ReferenceData, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	item, err := refdata.GetItem(s.db, id)

	return item, handler.NotFound(err, refdata.ErrItemNotFound)
}

// ShowItem shows an item with its values.
func (s *Service) ShowItem(c *fiber.Ctx) error {
	item, err := s.loadItem(c)
	if err != nil {
		return err
	}

	return c.Render(TemplateItemShow, fiber.Map{
		"Navigation": navFor(item.Name, "item").AddBreadcrumb(item.Code, itemURL(item.ID), true),
		"Item":       item,
	}, handler.BaseLayout)
}

// EditItem shows the item form.
func (s *Service) EditItem(c *fiber.Ctx) error {
	item, err := s.loadItem(c)
	if err != nil {
		return err
	}

	in := ItemForm{
		Code:        item.Code,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Status:      item.Status,
		ChangeType:  item.ChangeType,
	}
	if item.AcademicYearID != nil {
		in.AcademicYearID = *item.AcademicYearID
	}

	return s.renderItemForm(c, fiber.StatusOK, item.ID, in, nil)
}

// UpdateItem saves an item.
func (s *Service) UpdateItem(c *fiber.Ctx) error {
	item, err := s.loadItem(c)
	if err != nil {
		return err
	}

	in, errs := s.parseItem(c)
	if errs != nil {
		return s.renderItemForm(c, fiber.StatusBadRequest, item.ID, in, errs)
	}

	updated, err := refdata.UpdateItem(s.db, item.ID, in.model())
	if err != nil {
		return handler.NotFound(err, refdata.ErrItemNotFound)
	}

	s.audit(c, "update_item", "reference_data", updated.ID, fiber.Map{"code": updated.Code})

	return handler.Flash(c, handler.FlashSuccess, "Item "+updated.Code+" updated", itemURL(updated.ID))
}

// DeleteItem soft deletes an item and its values.
func (s *Service) DeleteItem(c *fiber.Ctx) error {
	item, err := s.loadItem(c)
	if err != nil {
		return err
	}

	if err := refdata.DeleteItem(s.db, item.ID); err != nil {
		return handler.NotFound(err, refdata.ErrItemNotFound)
	}

	s.audit(c, "delete_item", "reference_data", item.ID, fiber.Map{"code": item.Code})

	return handler.Flash(c, handler.FlashSuccess, "Item "+item.Code+" deleted", ItemsPath)
}

// History lists every version of the item's code across academic years.
func (s *Service) History(c *fiber.Ctx) error {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return err
	}

	versions, err := refdata.History(s.db, id)
	if err != nil {
		return handler.NotFound(err, refdata.ErrItemNotFound)
	}

	code := ""
	if len(versions) > 0 {
		code = versions[0].Code
	}

	return c.Render(TemplateItemHistory, fiber.Map{
		"Navigation": navFor("History of "+code, "history").
			AddBreadcrumb(code, itemURL(id), false).
			AddBreadcrumb("History", itemURL(id)+"/history", true),
		"ItemID":   id,
		"Code":     code,
		"Versions": versions,
	}, handler.BaseLayout)
}

func (s *Service) audit(c *fiber.Ctx, action, resource string, id uint64, details fiber.Map) {
	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: resource,
		ResourceID:   strconv.FormatUint(id, 10),
		Details:      details,
	})
}
