// Package store provides identity-store access for customer and voucher
// records. All find-or-create flows go through unique constraints rather
// than find-then-insert, so concurrent writers race at the database and the
// loser sees ErrDuplicateKey instead of corrupting state.
package store

import (
	"errors"

	"github.com/mercurios-retail/syncbridge/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the given keys. For
	// reconcilers this is the expected create path, not a fault.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert hits a unique constraint.
	// Callers treat it as "already exists, retry as update".
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrAlreadyApplied is returned when an order's contribution to a
	// voucher has already been recorded. It is the redelivery guard.
	ErrAlreadyApplied = errors.New("order already applied to voucher")
)

// CustomerStore is the identity-store contract for customer records.
type CustomerStore interface {
	// FindByEmailOrShopifyID matches by normalized email first, then by
	// bound Shopify customer id. Empty arguments are skipped.
	FindByEmailOrShopifyID(email, shopifyID string) (*models.CustomerRecord, error)

	// Create inserts a new record. The unique email constraint signals a
	// race with a concurrent create via ErrDuplicateKey.
	Create(rec *models.CustomerRecord) error

	Save(rec *models.CustomerRecord) error

	// ListPendingPOSExport returns approved customers that carry no POS
	// customer id yet, oldest first, capped at limit.
	ListPendingPOSExport(limit int) ([]models.CustomerRecord, error)
}

// VoucherStore is the identity-store contract for voucher records.
type VoucherStore interface {
	// FindByKeys matches by the first of POS uuid, POS number, Shopify code
	// that is present on a record. The lookup is a single disjunction;
	// priority between multiple hits is resolved by the caller's key order.
	FindByKeys(posUUID string, posNumber int64, code string) (*models.VoucherRecord, error)

	FindByPOSUUID(posUUID string) (*models.VoucherRecord, error)
	FindByCode(code string) (*models.VoucherRecord, error)

	Create(rec *models.VoucherRecord) error
	Save(rec *models.VoucherRecord) error

	// RecordApplication inserts the per-order application record, returning
	// ErrAlreadyApplied when the (voucher, order, kind) row already exists.
	RecordApplication(app *models.VoucherApplication) error

	// ApplyRedemption inserts the application record and saves the mutated
	// voucher in one transaction. Returns ErrAlreadyApplied when the
	// (voucher, order, kind) row already exists; on any other failure
	// neither write survives, so a redelivery can apply the delta.
	ApplyRedemption(rec *models.VoucherRecord, app *models.VoucherApplication) error
}
