// Package user provides handlers for managing users in the admin area.
package user

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
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/dberr"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/navigation"
)

const (
	// Path is the base path for user management.
	Path = handler.RootPath + "admin/users"

	// TemplateList is the template for listing users.
	TemplateList = "admin/user/list"
	// TemplateForm is the template for creating/updating a user.
	TemplateForm = "admin/user/form"
	// TemplatePassword shows a generated password once.
	TemplatePassword = "admin/user/password"

	resourceType = "user"
)

var (
	// ErrDeleteSelf is returned when users try to delete their own account.
	ErrDeleteSelf = errors.New("you cannot delete your own account")
	// ErrDeleteAdmin is returned when deleting a user with the admin role.
	ErrDeleteAdmin = errors.New("cannot delete admin users")
	// ErrDeactivateSelf is returned when users try to deactivate their own account.
	ErrDeactivateSelf = errors.New("you cannot deactivate your own account")
)

// Service provides CRUD operations for users.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	local     *auth.LocalProvider
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

// Form is the user form. Password is only used for new local accounts.
type Form struct {
	Username   string `form:"username"    validate:"required,min=3,max=100"`
	Email      string `form:"email"       validate:"required,email,max=255"`
	FirstName  string `form:"firstname"   validate:"max=100"`
	LastName   string `form:"lastname"    validate:"max=100"`
	AuthSource string `form:"source"      validate:"required,oneof=local oidc ldap"`
	ExternalID string `form:"external_id" validate:"max=255"`
	Password   string `form:"password"    validate:"omitempty,min=8,max=128"`
	RoleID     uint   `form:"role_id"`
}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.local = auth.NewLocalProvider(db)
	s.validator = validator.New()

	admin := auth.RequirePermission(authService, auth.PermAdminUsers)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, admin, s.List)
		router.Post(handler.RouterRootPath, admin, s.Create)
		router.Get("/new", admin, s.New)
		router.Get("/:id/edit", admin, s.Edit)
		router.Post("/:id", admin, s.Update)
		router.Post("/:id/activate", admin, s.Activate)
		router.Post("/:id/deactivate", admin, s.Deactivate)
		router.Post("/:id/reset-password", admin, s.ResetPassword)
		router.Post("/:id/delete", admin, s.Delete)
	})
}

func navFor(title string, active bool) *navigation.Context {
	return navigation.NewContext(title, "admin", "user").
		AddBreadcrumb("Home", handler.DashboardPath, false).
		AddBreadcrumb("Admin", navigation.Placeholder, false).
		AddBreadcrumb("Users", Path, active)
}

func userURL(id uint64) string {
	return Path + "/" + strconv.FormatUint(id, 10)
}

// List shows users with simple pagination and search.
func (s *Service) List(c *fiber.Ctx) error {
	page, pageSize := handler.QueryPage(c)
	search := strings.TrimSpace(c.Query("search"))

	tx := s.db.Model(&models.User{})

	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		tx = tx.Where(
			"LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return err
	}

	p := handler.NewPage(page, pageSize, total)

	var users []models.User
	if err := tx.Preload("Role").Order("username").
		Limit(p.PageSize).Offset((p.Page - 1) * p.PageSize).Find(&users).Error; err != nil {
		return err
	}

	var currentUserID uint64
	if id := handler.UserID(c); id != nil {
		currentUserID = *id
	}

	return c.Render(TemplateList, fiber.Map{
		"Navigation":    navFor("Users", true),
		"Users":         users,
		"CurrentUserID": currentUserID,
		"Search":        search,
		"Pagination":    p,
	}, handler.BaseLayout)
}

func (s *Service) renderForm(c *fiber.Ctx, status int, id uint64, in Form, errs []string) error {
	var roles []models.Role
	if err := s.db.Order("name ASC").Find(&roles).Error; err != nil {
		return err
	}

	title, action := "New user", Path
	if id > 0 {
		title, action = "Edit user", userURL(id)
	}

	return c.Status(status).Render(TemplateForm, fiber.Map{
		"Navigation": navFor(title, false).AddBreadcrumb(title, action, true),
		"Form":       in,
		"Action":     action,
		"IsCreate":   id == 0,
		"Roles":      roles,
		"Errors":     errs,
	}, handler.BaseLayout)
}

// New shows the creation form.
func (s *Service) New(c *fiber.Ctx) error {
	return s.renderForm(c, fiber.StatusOK, 0, Form{AuthSource: string(models.AuthSourceLocal)}, nil)
}

func (s *Service) parse(c *fiber.Ctx) (Form, []string) {
	in := Form{}
	if err := c.BodyParser(&in); err != nil {
		return in, []string{"Invalid form data"}
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.AuthSource != string(models.AuthSourceLocal) {
		in.Password = ""
	}

	if err := s.validator.Struct(in); err != nil {
		return in, handler.ValidationMessages(err)
	}

	return in, nil
}

// roleOrDefault returns roleID, or the configured default role when zero.
func (s *Service) roleOrDefault(roleID uint) (uint, error) {
	if roleID > 0 {
		return roleID, nil
	}

	return auth.NewService(s.db).RoleIDByName(s.cfg.Auth.DefaultRole)
}

// Create creates a new user. Local accounts need a password.
func (s *Service) Create(c *fiber.Ctx) error {
	in, errs := s.parse(c)
	if errs != nil {
		return s.renderForm(c, fiber.StatusBadRequest, 0, in, errs)
	}

	if in.AuthSource == string(models.AuthSourceLocal) && in.Password == "" {
		return s.renderForm(c, fiber.StatusBadRequest, 0, in, []string{"Password is required for local accounts"})
	}

	roleID, err := s.roleOrDefault(in.RoleID)
	if err != nil {
		return err
	}

	var user *models.User

	if in.AuthSource == string(models.AuthSourceLocal) {
		user, err = s.local.CreateUser(in.Username, in.Email, in.Password, in.FirstName, in.LastName, roleID)
	} else {
		user = &models.User{
			Active:     true,
			Username:   in.Username,
			Email:      in.Email,
			FirstName:  in.FirstName,
			LastName:   in.LastName,
			RoleID:     roleID,
			AuthSource: models.AuthSource(in.AuthSource),
			ExternalID: in.ExternalID,
		}
		err = s.db.Create(user).Error
	}

	if errors.Is(err, auth.ErrUserNameOrEmailExists) || dberr.IsDuplicate(err) {
		return s.renderForm(c, fiber.StatusConflict, 0, in, []string{"A user with this username or email already exists"})
	}
	if err != nil {
		return err
	}

	s.audit(c, "create_user", user.ID, fiber.Map{"username": user.Username, "source": user.AuthSource})

	return handler.Flash(c, handler.FlashSuccess, "User "+user.Username+" created", Path)
}

func (s *Service) load(c *fiber.Ctx) (*models.User, error) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	u, err := s.local.GetUserByID(id)

	return u, handler.NotFound(err, auth.ErrUserNotFound)
}

// Edit shows the edit form for a user.
func (s *Service) Edit(c *fiber.Ctx) error {
	u, err := s.load(c)
	if err != nil {
		return err
	}

	return s.renderForm(c, fiber.StatusOK, u.ID, Form{
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		AuthSource: string(u.AuthSource),
		ExternalID: u.ExternalID,
		RoleID:     u.RoleID,
	}, nil)
}

// Update changes profile fields and the role. Username and source are fixed.
func (s *Service) Update(c *fiber.Ctx) error {
	u, err := s.load(c)
	if err != nil {
		return err
	}

	in, errs := s.parse(c)
	in.Username, in.AuthSource = u.Username, string(u.AuthSource)

	if errs != nil {
		return s.renderForm(c, fiber.StatusBadRequest, u.ID, in, errs)
	}

	roleID, err := s.roleOrDefault(in.RoleID)
	if err != nil {
		return err
	}

	err = s.local.UpdateUser(u.ID, in.Email, in.FirstName, in.LastName, roleID)
	if dberr.IsDuplicate(err) {
		return s.renderForm(c, fiber.StatusConflict, u.ID, in, []string{dberr.MsgDuplicate})
	}
	if err != nil {
		return handler.NotFound(err, auth.ErrUserNotFound)
	}

	s.audit(c, "update_user", u.ID, fiber.Map{"username": u.Username, "role_id": roleID})

	return handler.Flash(c, handler.FlashSuccess, "User "+u.Username+" updated", Path)
}

// Activate restores access for a user.
func (s *Service) Activate(c *fiber.Ctx) error {
	return s.setActive(c, true)
}

// Deactivate revokes access for a user without deleting it.
func (s *Service) Deactivate(c *fiber.Ctx) error {
	return s.setActive(c, false)
}

func (s *Service) setActive(c *fiber.Ctx, active bool) error {
	u, err := s.load(c)
	if err != nil {
		return err
	}

	if !active && isSelf(c, u) {
		return handler.Flash(c, handler.FlashError, capitalize(ErrDeactivateSelf), Path)
	}

	if err := s.local.SetActive(u.ID, active); err != nil {
		return err
	}

	action, verb := "deactivate_user", "deactivated"
	if active {
		action, verb = "activate_user", "activated"
	}

	s.audit(c, action, u.ID, fiber.Map{"username": u.Username})

	return handler.Flash(c, handler.FlashSuccess, "User "+u.Username+" "+verb, Path)
}

// ResetPassword generates a new password for a local user and shows it once.
func (s *Service) ResetPassword(c *fiber.Ctx) error {
	u, err := s.load(c)
	if err != nil {
		return err
	}

	if u.AuthSource != models.AuthSourceLocal {
		return handler.Flash(c, handler.FlashError, "Only local accounts have a password", Path)
	}

	password, err := s.local.ResetPassword(u.ID)
	if err != nil {
		return handler.NotFound(err, auth.ErrUserNotFound)
	}

	s.audit(c, "reset_password", u.ID, fiber.Map{"username": u.Username})

	return c.Render(TemplatePassword, fiber.Map{
		"Navigation": navFor("Password reset", false).AddBreadcrumb(u.Username, userURL(u.ID)+"/edit", true),
		"User":       u,
		"Password":   password,
	}, handler.BaseLayout)
}

// Delete removes a user. Admins and the current user cannot be deleted.
func (s *Service) Delete(c *fiber.Ctx) error {
	u, err := s.load(c)
	if err != nil {
		return err
	}

	switch {
	case isSelf(c, u):
		return handler.Flash(c, handler.FlashError, capitalize(ErrDeleteSelf), Path)
	case u.Role.Name == models.RoleAdmin:
		return handler.Flash(c, handler.FlashError, capitalize(ErrDeleteAdmin), Path)
	}

	if err := s.local.DeleteUser(u.ID); err != nil {
		return err
	}

	s.audit(c, "delete_user", u.ID, fiber.Map{"username": u.Username})

	return handler.Flash(c, handler.FlashSuccess, "User "+u.Username+" deleted", Path)
}

func isSelf(c *fiber.Ctx, u *models.User) bool {
	id := handler.UserID(c)

	return id != nil && *id == u.ID
}

func capitalize(err error) string {
	msg := err.Error()

	return strings.ToUpper(msg[:1]) + msg[1:]
}

func (s *Service) audit(c *fiber.Ctx, action string, id uint64, details fiber.Map) {
	audit.Record(s.db, audit.Entry{
		UserID:       handler.UserID(c),
		Username:     handler.Username(c),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   strconv.FormatUint(id, 10),
		Details:      details,
	})
}
