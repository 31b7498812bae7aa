package dto

import "github.com/mercurios-retail/syncbridge/internal/sync"

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}

// CustomerSyncResponse is the result envelope for a manual customer batch run.
type CustomerSyncResponse struct {
	Success bool            `json:"success"`
	Stats   sync.BatchStats `json:"stats"`
}

// POSExportResponse is the result envelope for a manual identity→POS
// customer export run.
type POSExportResponse struct {
	Success bool                `json:"success"`
	Stats   sync.POSExportStats `json:"stats"`
}

// VoucherSyncResponse is the result envelope for a manual POS voucher sync run.
type VoucherSyncResponse struct {
	Success bool                  `json:"success"`
	Stats   sync.VoucherSyncStats `json:"stats"`
}

// OrderWebhookResponse acknowledges an orders/paid delivery.
type OrderWebhookResponse struct {
	Received bool            `json:"received"`
	Stats    sync.OrderStats `json:"stats"`
}
