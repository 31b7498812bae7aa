package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/mercurios-retail/syncbridge/internal/dto"
	"github.com/mercurios-retail/syncbridge/internal/sync"
)

// SyncHandler exposes the manual sync triggers. Reconcilers never panic past
// their boundary; every failure comes back as a structured result.
type SyncHandler struct {
	customers *sync.CustomerReconciler
	vouchers  *sync.VoucherReconciler
}

func NewSyncHandler(customers *sync.CustomerReconciler, vouchers *sync.VoucherReconciler) *SyncHandler {
	return &SyncHandler{customers: customers, vouchers: vouchers}
}

// SyncCustomers runs a full customer batch against the Shopify customer list.
func (h *SyncHandler) SyncCustomers(c *fiber.Ctx) error {
	slog.Info("manual customer sync triggered", "component", "customer_sync")

	stats, err := h.customers.ReconcileBatch(c.Context())
	if err != nil {
		slog.Error("customer batch aborted", "component", "customer_sync", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.JSON(dto.CustomerSyncResponse{Success: true, Stats: stats})
}

// ExportCustomers pushes approved identity customers to the POS.
func (h *SyncHandler) ExportCustomers(c *fiber.Ctx) error {
	slog.Info("manual pos customer export triggered", "component", "customer_sync")

	stats, err := h.customers.ExportToPOS(c.Context())
	if err != nil {
		slog.Error("pos customer export aborted", "component", "customer_sync", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.JSON(dto.POSExportResponse{Success: true, Stats: stats})
}

// SyncVouchers runs one POS→storefront voucher poll cycle.
func (h *SyncHandler) SyncVouchers(c *fiber.Ctx) error {
	slog.Info("manual voucher sync triggered", "component", "voucher_sync")

	stats, err := h.vouchers.SyncFromProHandel(c.Context())
	if err != nil {
		slog.Error("voucher sync aborted", "component", "voucher_sync", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.JSON(dto.VoucherSyncResponse{Success: true, Stats: stats})
}
