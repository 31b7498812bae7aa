package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/mercurios-retail/syncbridge/internal/config"
	"github.com/mercurios-retail/syncbridge/internal/handlers"
	"github.com/mercurios-retail/syncbridge/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	syncHandler *handlers.SyncHandler,
	webhookHandler *handlers.WebhookHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Manual sync triggers (admin token required)
	syncGroup := api.Group("/sync", middleware.AdminRequired(cfg))
	syncGroup.Post("/customers", syncHandler.SyncCustomers)
	syncGroup.Post("/customers/export", syncHandler.ExportCustomers)
	syncGroup.Post("/vouchers", syncHandler.SyncVouchers)

	// Shopify webhooks (HMAC verified, no other auth)
	webhooks := api.Group("/webhooks", middleware.VerifyShopifyWebhook(cfg))
	webhooks.Post("/customers", webhookHandler.HandleCustomer)
	webhooks.Post("/orders-paid", webhookHandler.HandleOrderPaid)
}
