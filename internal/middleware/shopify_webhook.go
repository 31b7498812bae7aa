package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/gofiber/fiber/v2"
	"github.com/mercurios-retail/syncbridge/internal/config"
	"github.com/mercurios-retail/syncbridge/internal/dto"
)

// VerifyShopifyWebhook checks the X-Shopify-Hmac-Sha256 header against the
// raw request body. Deliveries are at-least-once and unauthenticated beyond
// this signature, so a failed check is rejected before any parsing.
func VerifyShopifyWebhook(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.ShopifyWebhookSecret == "" {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Webhooks not configured",
			})
		}

		signature := c.Get("X-Shopify-Hmac-Sha256")
		if signature == "" || !validSignature(c.Body(), signature, cfg.ShopifyWebhookSecret) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid webhook signature",
			})
		}
		return c.Next()
	}
}

// validSignature computes HMAC-SHA256 over the payload and compares the
// base64 encoding against the header in constant time.
func validSignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
