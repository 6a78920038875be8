package auth

import (
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

const (
	// LocalsUser holds the logged in models.User.
	LocalsUser = "CurrentUser"
	// LocalsPermissions holds the permission names of the logged in user.
	LocalsPermissions = "permissions"
)

// RequirePermission creates Fiber middleware that requires a specific permission.
// Failures are returned as *fiber.Error so the central error handler renders them.
func RequirePermission(authService *Service, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionData, err := session.Current(c)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		hasPermission, err := authService.HasPermission(sessionData.User.ID, permission)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", sessionData.User.ID).Str("permission", permission).
				Msg("Failed to check permission")

			return err
		}

		if !hasPermission {
			log.Warn().Uint64("user_id", sessionData.User.ID).Str("permission", permission).
				Msg("User lacks required permission")

			return fiber.NewError(fiber.StatusForbidden, "You don't have permission to access this resource")
		}

		return c.Next()
	}
}

// RequireAnyPermission creates Fiber middleware that requires at least one of the given permissions.
func RequireAnyPermission(authService *Service, permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionData, err := session.Current(c)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		hasPermission, err := authService.HasAnyPermission(sessionData.User.ID, permissions)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", sessionData.User.ID).Strs("permissions", permissions).
				Msg("Failed to check permissions")

			return err
		}

		if !hasPermission {
			log.Warn().Uint64("user_id", sessionData.User.ID).Strs("permissions", permissions).
				Msg("User lacks required permissions")

			return fiber.NewError(fiber.StatusForbidden, "You don't have permission to access this resource")
		}

		return c.Next()
	}
}

// AddPermissionsToLocals adds the current user and its permissions to fiber.Locals
// so templates can render conditionally.
func AddPermissionsToLocals(authService *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionData, err := session.Current(c)
		if err != nil {
			return c.Next()
		}

		permissions, err := authService.GetUserPermissions(sessionData.User.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", sessionData.User.ID).
				Msg("Failed to get user permissions")

			return c.Next()
		}

		c.Locals(LocalsUser, sessionData.User)
		c.Locals(LocalsPermissions, permissions)

		return c.Next()
	}
}

// Can reports whether the permissions stored in locals include permission.
func Can(c *fiber.Ctx, permission string) bool {
	perms, ok := c.Locals(LocalsPermissions).([]string)
	if !ok {
		return false
	}

	return slices.Contains(perms, permission)
}
