package refdata

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dfe-rrdm/rrdm/internal/db/controller/refdata"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
)

// RestorePointForm names a new restore point.
type RestorePointForm struct {
	Name        string `form:"name"        validate:"required,max=255"`
	Description string `form:"description" validate:"max=2000"`
}

// ListRestorePoints shows the stored snapshots.
func (s *Service) ListRestorePoints(c *fiber.Ctx) error {
	points, err := refdata.ListRestorePoints(s.db)
	if err != nil {
		return err
	}

	return s.renderRestorePoints(c, fiber.StatusOK, points, RestorePointForm{}, nil)
}

func (s *Service) renderRestorePoints(c *fiber.Ctx, status int, points any, in RestorePointForm, errs []string) error {
	return c.Status(status).Render(TemplateRestorePoints, fiber.Map{
		"Navigation": navFor("Restore points", "restore-points").
			AddBreadcrumb("Restore points", RestorePointsPath, true),
		"RestorePoints": points,
		"Form":          in,
		"Errors":        errs,
	}, handler.BaseLayout)
}

// CreateRestorePoint snapshots all items and values.
func (s *Service) CreateRestorePoint(c *fiber.Ctx) error {
	in := RestorePointForm{}
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form data")
	}

	in.Name = strings.TrimSpace(in.Name)

	if err := s.validator.Struct(in); err != nil {
		points, lerr := refdata.ListRestorePoints(s.db)
		if lerr != nil {
			return lerr
		}

		return s.renderRestorePoints(c, fiber.StatusBadRequest, points, in, handler.ValidationMessages(err))
	}

	rp, err := refdata.CreateRestorePoint(s.db, in.Name, in.Description, handler.UserID(c))
	if err != nil {
		return err
	}

	s.audit(c, "create_restore_point", "restore_point", rp.ID, fiber.Map{"name": rp.Name, "items": rp.ItemCount})

	return handler.Flash(c, handler.FlashSuccess,
		fmt.Sprintf("Restore point %q created with %d items", rp.Name, rp.ItemCount), RestorePointsPath)
}

// Restore replaces all items and values with a snapshot.
func (s *Service) Restore(c *fiber.Ctx) error {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return err
	}

	n, err := refdata.Restore(s.db, id)
	if err != nil {
		return handler.NotFound(err, refdata.ErrRestorePointNotFound)
	}

	s.audit(c, "restore", "restore_point", id, fiber.Map{"items": n})

	return handler.Flash(c, handler.FlashSuccess, fmt.Sprintf("Restored %d items", n), ItemsPath)
}
