// Package sync implements the cross-system reconciliation engine: matching
// inbound customer and voucher events against the identity store and
// applying create/update/transition decisions idempotently.
package sync

import (
	"errors"
	"strings"

	"github.com/mercurios-retail/syncbridge/internal/models"
	"github.com/mercurios-retail/syncbridge/internal/store"
)

// ErrMissingEmail marks a customer event that carries no email. Without the
// stable natural key the event cannot be deduplicated safely, so it is
// skipped rather than guessed at.
var ErrMissingEmail = errors.New("customer event has no email")

// Resolver finds the internal record an inbound event refers to. NotFound is
// reported as a nil record with a nil error: it is the expected create path,
// not a fault.
type Resolver struct {
	customers store.CustomerStore
	vouchers  store.VoucherStore
}

func NewResolver(customers store.CustomerStore, vouchers store.VoucherStore) *Resolver {
	return &Resolver{customers: customers, vouchers: vouchers}
}

// NormalizeEmail lower-cases and trims an email. Matching and storage only
// ever see the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveCustomer matches by normalized email first, then by bound external
// id. No fuzzy matching: a false-positive merge is worse than a duplicate.
func (r *Resolver) ResolveCustomer(email, shopifyID string) (*models.CustomerRecord, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, ErrMissingEmail
	}

	rec, err := r.customers.FindByEmailOrShopifyID(normalized, shopifyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ResolveVoucher matches by the first of POS uuid, POS number, Shopify code.
func (r *Resolver) ResolveVoucher(posUUID string, posNumber int64, code string) (*models.VoucherRecord, error) {
	rec, err := r.vouchers.FindByKeys(posUUID, posNumber, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
