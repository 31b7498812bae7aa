package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/mercurios-retail/syncbridge/internal/dto"
	"github.com/mercurios-retail/syncbridge/internal/gateway"
	"github.com/mercurios-retail/syncbridge/internal/sync"
)

// WebhookHandler processes Shopify webhook deliveries. Signature
// verification happens in middleware before these run. Processing failures
// are logged and acknowledged with 200: Shopify retries on non-2xx, and a
// bug of ours would otherwise turn every delivery into a retry storm —
// re-delivery only helps for transient faults, which the reconcilers absorb
// idempotently anyway.
type WebhookHandler struct {
	customers *sync.CustomerReconciler
	vouchers  *sync.VoucherReconciler
}

func NewWebhookHandler(customers *sync.CustomerReconciler, vouchers *sync.VoucherReconciler) *WebhookHandler {
	return &WebhookHandler{customers: customers, vouchers: vouchers}
}

// HandleCustomer processes customers/create and customers/update deliveries.
func (h *WebhookHandler) HandleCustomer(c *fiber.Ctx) error {
	topic := c.Get("X-Shopify-Topic")
	shop := c.Get("X-Shopify-Shop-Domain")

	var payload gateway.ShopifyCustomer
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid webhook payload",
		})
	}

	slog.Info("customer webhook received",
		"component", "customer_sync", "topic", topic, "shop", shop, "shopify_customer_id", payload.ID)

	outcome, err := h.customers.ReconcileOne(payload)
	if err != nil {
		slog.Error("customer webhook processing failed",
			"component", "customer_sync", "topic", topic, "shopify_customer_id", payload.ID, "error", err)
	}
	return c.JSON(fiber.Map{"received": true, "outcome": string(outcome)})
}

// HandleOrderPaid processes orders/paid deliveries for voucher purchases and
// gift-card redemptions.
func (h *WebhookHandler) HandleOrderPaid(c *fiber.Ctx) error {
	topic := c.Get("X-Shopify-Topic")
	shop := c.Get("X-Shopify-Shop-Domain")

	var order gateway.ShopifyOrder
	if err := c.BodyParser(&order); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid webhook payload",
		})
	}

	slog.Info("order webhook received",
		"component", "voucher_sync", "topic", topic, "shop", shop, "order_id", order.ID)

	stats, err := h.vouchers.ProcessOrder(c.Context(), order)
	if err != nil {
		slog.Error("order webhook processing failed",
			"component", "voucher_sync", "order_id", order.ID, "error", err)
	}
	return c.JSON(dto.OrderWebhookResponse{Received: true, Stats: stats})
}
