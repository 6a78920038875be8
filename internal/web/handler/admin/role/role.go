// Package role provides the role list and permission assignment pages.
package role

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// Path is the base path of role management.
	Path = handler.RootPath + "admin/roles"

	// TemplateList lists roles with their permissions.
	TemplateList = "admin/role/list"
	// TemplateForm assigns permissions to a role.
	TemplateForm = "admin/role/form"
)

// Service handles roles.
type Service struct {
	handler.Service
	cfg  *config.Config
	db   *gorm.DB
	auth *auth.Service
}

// Handler is the role handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.auth = authService

	admin := auth.RequirePermission(authService, auth.PermAdminRoles)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, admin, s.List)
		router.Get("/:id/edit", admin, s.Edit)
		router.Post("/:id", admin, s.Update)
	})
}

func navFor(title string, active bool) *navigation.Context {
	return navigation.NewContext(title, "admin", "role").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Admin", navigation.Placeholder, false).
		AddBreadcrumb("Roles", Path, active)
}

// List shows roles and their permissions.
func (s *Service) List(c *fiber.Ctx) error {
	roles, err := s.auth.ListRoles()
	if err != nil {
		return err
	}

	return c.Render(TemplateList, fiber.Map{
		"Navigation": navFor("Roles", true),
		"Roles":      roles,
	}, handler.BaseLayout)
}

func (s *Service) load(c *fiber.Ctx) (*models.Role, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	var r models.Role
	if err := s.db.Preload("Permissions").First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Role not found")
		}

		return nil, err
	}

	return &r, nil
}

// Edit shows every permission with the role's current grants checked.
func (s *Service) Edit(c *fiber.Ctx) error {
	r, err := s.load(c)
	if err != nil {
		return err
	}

	perms, err := s.auth.ListPermissionRows()
	if err != nil {
		return err
	}

	selected := make(map[uint]bool, len(r.Permissions))
	for _, p := range r.Permissions {
		selected[p.ID] = true
	}

	return c.Render(TemplateForm, fiber.Map{
		"Navigation":  navFor("Edit role", false).AddBreadcrumb(r.Name, "", true),
		"Role":        r,
		"Permissions": perms,
		"Selected":    selected,
		"Locked":      r.Name == models.RoleAdmin,
	}, handler.BaseLayout)
}

// Update replaces the role's permissions with the checked ones.
func (s *Service) Update(c *fiber.Ctx) error {
	r, err := s.load(c)
	if err != nil {
		return err
	}

	if r.Name == models.RoleAdmin {
		return handler.Flash(c, handler.FlashError, "The admin role always has every permission", Path)
	}

	raw := c.Request().PostArgs().PeekMulti("permission_ids")

	ids := make([]uint, 0, len(raw))
	names := make([]string, 0, len(raw))

	for _, b := range raw {
		id, err := strconv.ParseUint(string(b), 10, 32)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid permission id")
		}

		ids = append(ids, uint(id))
	}

	if err := s.auth.SetRolePermissions(r.ID, ids); err != nil {
		return handler.NotFound(err, auth.ErrRoleNotFound)
	}

	var perms []models.Permission
	if len(ids) > 0 {
		if err := s.db.Where("id IN ?", ids).Order("name").Find(&perms).Error; err != nil {
			return err
		}
	}

	for _, p := range perms {
		names = append(names, p.Name)
	}

	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       "update_role_permissions",
		ResourceType: "role",
		ResourceID:   strconv.FormatUint(uint64(r.ID), 10),
		Details:      fiber.Map{"role": r.Name, "permissions": names},
	})

	return handler.Flash(c, handler.FlashSuccess, "Permissions for "+r.Name+" updated", Path)
}
