package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/mercurios-retail/syncbridge/internal/config"
	"github.com/mercurios-retail/syncbridge/internal/dto"
)

// AdminRequired guards the manual sync triggers with the configured admin
// token. A missing ADMIN_TOKEN disables the endpoints entirely rather than
// leaving them open.
func AdminRequired(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AdminToken == "" {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin endpoints not configured",
			})
		}
		token := c.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminToken)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		return c.Next()
	}
}
