package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
)

// Service is the interface for a web handler service that registers its own routes.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service)
}
