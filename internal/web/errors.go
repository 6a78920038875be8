package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dfe-rrdm/rrdm/internal/db/dberr"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/login"
)

const (
	// TemplateError is the error page.
	TemplateError = "error"

	// MsgUnexpected is shown for errors without a public message.
	MsgUnexpected = "An unexpected error occurred"
	// MsgPageNotFound is shown for unknown routes.
	MsgPageNotFound = "Page not found"

	apiPrefix = "/api/"
)

// classify maps err to a status code and a message safe to show.
// details carries the internal error text in dev mode only.
func classify(err error, devMode bool) (code int, message, details string) {
	var fe *fiber.Error

	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message, ""
	case dberr.IsDuplicate(err):
		return fiber.StatusConflict, dberr.MsgDuplicate, ""
	case dberr.IsNotFound(err):
		return fiber.StatusNotFound, dberr.MsgNotFound, ""
	}

	if devMode {
		details = err.Error()
	}

	return fiber.StatusInternalServerError, MsgUnexpected, details
}

// ErrorHandler is the single fiber error handler. API paths get JSON, other
// paths render the error template.
func ErrorHandler(devMode bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, message, details := classify(err, devMode)

		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("request failed")
		} else {
			log.Debug().Err(err).Int("status", code).Str("path", c.Path()).Msg("request rejected")
		}

		if strings.HasPrefix(c.Path(), apiPrefix) {
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"message": message,
					"status":  code,
					"details": details,
				},
			})
		}

		if code == fiber.StatusUnauthorized {
			return c.Redirect(login.Path)
		}

		c.Set(fiber.HeaderCacheControl, "no-store")

		errRender := c.Status(code).Render(TemplateError, fiber.Map{
			"Title":   titleFor(code),
			"Message": message,
			"Details": details,
			"Status":  code,
		}, handler.BaseLayout)
		if errRender != nil {
			log.Error().Err(errRender).Msg("failed to render error page")

			return c.Status(code).SendString(message)
		}

		return nil
	}
}

func titleFor(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return MsgPageNotFound
	case fiber.StatusForbidden:
		return "Access denied"
	case fiber.StatusConflict:
		return "Duplicate record"
	case fiber.StatusTooManyRequests:
		return "Too many requests"
	}

	if code >= fiber.StatusInternalServerError {
		return "Sorry, there is a problem with the service"
	}

	return "There is a problem"
}

// notFound is the last handler; it turns unmatched routes into 404s.
func notFound(_ *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotFound, MsgPageNotFound)
}
