package refdata

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dfe-rrdm/rrdm/internal/db/controller/refdata"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
)

// ValueForm is the reference value form.
type ValueForm struct {
	ItemID       uint64 `form:"item_id"       validate:"required"`
	Value        string `form:"value"         validate:"required,max=255"`
	DisplayName  string `form:"display_name"  validate:"required,max=255"`
	Description  string `form:"description"   validate:"max=5000"`
	DisplayOrder int    `form:"display_order" validate:"min=0,max=99999"`
	IsDefault    bool   `form:"is_default"`
}

func valueURL(id uint64) string {
	return ValuesPath + "/" + strconv.FormatUint(id, 10)
}

// ListValues shows the values of an item.
func (s *Service) ListValues(c *fiber.Ctx) error {
	item, err := s.loadItem(c)
	if err != nil {
		return err
	}

	return c.Render(TemplateValueList, fiber.Map{
		"Navigation": navFor("Values of "+item.Code, "values").
			AddBreadcrumb(item.Code, itemURL(item.ID), false).
			AddBreadcrumb("Values", itemURL(item.ID)+"/values", true),
		"Item":   item,
		"Values": item.Values,
	}, handler.BaseLayout)
}

func (s *Service) renderValueForm(c *fiber.Ctx, status int, id uint64, in ValueForm, errs []string) error {
	item, err := refdata.GetItem(s.db, in.ItemID)
	if err != nil {
		return handler.NotFound(err, refdata.ErrItemNotFound)
	}

	title, action := "New value", ValuesPath
	if id > 0 {
		title, action = "Edit value", valueURL(id)
	}

	return c.Status(status).Render(TemplateValueForm, fiber.Map{
		"Navigation": navFor(title, "value-form").
			AddBreadcrumb(item.Code, itemURL(item.ID), false).
			AddBreadcrumb(title, action, true),
		"Item":     item,
		"Form":     in,
		"Action":   action,
		"IsCreate": id == 0,
		"Errors":   errs,
	}, handler.BaseLayout)
}

// parseValue binds and validates the value form. A non-zero itemID replaces
// whatever item_id the client posted.
func (s *Service) parseValue(c *fiber.Ctx, itemID uint64) (ValueForm, []string) {
	in := ValueForm{}
	if err := c.BodyParser(&in); err != nil {
		return ValueForm{ItemID: itemID}, []string{"Invalid form data"}
	}

	if itemID != 0 {
		in.ItemID = itemID
	}

	in.Value = strings.TrimSpace(in.Value)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if err := s.validator.Struct(in); err != nil {
		return in, handler.ValidationMessages(err)
	}

	return in, nil
}

// NewValue shows the value form for the item given in ?item=.
func (s *Service) NewValue(c *fiber.Ctx) error {
	itemID, err := strconv.ParseUint(c.Query("item"), 10, 64)
	if err != nil || itemID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "An item is required")
	}

	return s.renderValueForm(c, fiber.StatusOK, 0, ValueForm{ItemID: itemID}, nil)
}

// CreateValue adds a value to an item.
func (s *Service) CreateValue(c *fiber.Ctx) error {
	in, errs := s.parseValue(c, 0)
	if errs != nil {
		if in.ItemID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, strings.Join(errs, "; "))
		}

		return s.renderValueForm(c, fiber.StatusBadRequest, 0, in, errs)
	}

	v := &models.ReferenceValue{
		ItemID:       in.ItemID,
		Value:        in.Value,
		DisplayName:  in.DisplayName,
		Description:  in.Description,
		DisplayOrder: in.DisplayOrder,
		IsDefault:    in.IsDefault,
	}

	if err := refdata.CreateValue(s.db, v); err != nil {
		return handler.NotFound(err, refdata.ErrItemNotFound)
	}

	s.audit(c, "create_value", "reference_value", v.ID, fiber.Map{"item_id": v.ItemID, "value": v.Value})

	return handler.Flash(c, handler.FlashSuccess, "Value "+v.Value+" added", itemURL(v.ItemID)+"/values")
}

func (s *Service) loadValue(c *fiber.Ctx) (*models.ReferenceValue, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	v, err := refdata.GetValue(s.db, id)

	return v, handler.NotFound(err, refdata.ErrValueNotFound)
}

// EditValue shows the value form.
func (s *Service) EditValue(c *fiber.Ctx) error {
	v, err := s.loadValue(c)
	if err != nil {
		return err
	}

	return s.renderValueForm(c, fiber.StatusOK, v.ID, ValueForm{
		ItemID:       v.ItemID,
		Value:        v.Value,
		DisplayName:  v.DisplayName,
		Description:  v.Description,
		DisplayOrder: v.DisplayOrder,
		IsDefault:    v.IsDefault,
	}, nil)
}

// UpdateValue saves a value. The item of a value cannot change.
func (s *Service) UpdateValue(c *fiber.Ctx) error {
	v, err := s.loadValue(c)
	if err != nil {
		return err
	}

	in, errs := s.parseValue(c, v.ItemID)
	if errs != nil {
		return s.renderValueForm(c, fiber.StatusBadRequest, v.ID, in, errs)
	}

	updated, err := refdata.UpdateValue(s.db, v.ID, models.ReferenceValue{
		Value:        in.Value,
		DisplayName:  in.DisplayName,
		Description:  in.Description,
		DisplayOrder: in.DisplayOrder,
		IsDefault:    in.IsDefault,
	})
	if err != nil {
		return handler.NotFound(err, refdata.ErrValueNotFound)
	}

	s.audit(c, "update_value", "reference_value", updated.ID, fiber.Map{"item_id": updated.ItemID, "value": updated.Value})

	return handler.Flash(c, handler.FlashSuccess, "Value "+updated.Value+" updated", itemURL(updated.ItemID)+"/values")
}

// DeleteValue soft deletes a value.
func (s *Service) DeleteValue(c *fiber.Ctx) error {
	v, err := s.loadValue(c)
	if err != nil {
		return err
	}

	itemID, err := refdata.DeleteValue(s.db, v.ID)
	if err != nil {
		return handler.NotFound(err, refdata.ErrValueNotFound)
	}

	s.audit(c, "delete_value", "reference_value", v.ID, fiber.Map{"item_id": itemID, "value": v.Value})

	return handler.Flash(c, handler.FlashSuccess, "Value "+v.Value+" deleted", itemURL(itemID)+"/values")
}
