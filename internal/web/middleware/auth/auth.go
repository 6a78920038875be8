package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// publicPrefixes are served without a session.
var publicPrefixes = []string{ //nolint:gochecknoglobals
	"/static",
	"/health",
	"/metrics",
	"/logout",
	"/auth/oidc",
}

// Middleware is a Fiber middleware that checks for user authentication.
func Middleware(c *fiber.Ctx) error {
	path := strings.ToLower(c.Path())

	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return c.Next()
		}
	}

	isLoginPage := IsLoginPage(c)

	_, err := session.Current(c)
	valid := err == nil

	switch {
	case valid && isLoginPage:
		return c.Redirect(handler.DashboardPath)
	case valid, isLoginPage:
		return c.Next()
	case strings.HasPrefix(path, "/api/"):
		return fiber.ErrUnauthorized
	default:
		return c.Redirect(LoginPath)
	}
}

// IsLoginPage checks if the current request is for the login page.
func IsLoginPage(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Path()), LoginPath)
}
