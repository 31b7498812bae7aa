package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mercurios-retail/syncbridge/internal/gateway"
	"github.com/mercurios-retail/syncbridge/internal/models"
	"github.com/mercurios-retail/syncbridge/internal/store"
)

// Outcome of reconciling a single customer event.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeConflict Outcome = "conflict"
)

// Audit actions written by the customer reconciler.
const (
	AuditCreatedFromShopify = "CREATED_FROM_SHOPIFY"
	AuditShopifyIDConflict  = "SHOPIFY_ID_CONFLICT"
	AuditCreatedInProHandel = "CREATED_IN_PROHANDEL"
)

// BatchStats aggregates one batch run. Per-record failures are counted, not
// propagated; only a page-fetch failure aborts the batch.
type BatchStats struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// CustomerReconciler applies inbound Shopify customer events to the identity
// store (resolve, merge-or-create, persist, audit) and exports approved
// records to the POS.
type CustomerReconciler struct {
	customers store.CustomerStore
	shopify   gateway.Shopify
	prohandel gateway.ProHandel
	resolver  *Resolver
}

func NewCustomerReconciler(customers store.CustomerStore, shopify gateway.Shopify, prohandel gateway.ProHandel, resolver *Resolver) *CustomerReconciler {
	return &CustomerReconciler{customers: customers, shopify: shopify, prohandel: prohandel, resolver: resolver}
}

// ReconcileOne processes a single customer event. Applying the same event
// twice yields the same final state: creates are keyed by the unique email
// constraint and updates are merges, not appends.
func (r *CustomerReconciler) ReconcileOne(src gateway.ShopifyCustomer) (Outcome, error) {
	email := NormalizeEmail(src.Email)
	if email == "" {
		slog.Warn("skipping shopify customer without email",
			"component", "customer_sync", "shopify_customer_id", src.ID)
		return OutcomeSkipped, ErrMissingEmail
	}

	shopifyID := strconv.FormatInt(src.ID, 10)

	existing, err := r.resolver.ResolveCustomer(email, shopifyID)
	if err != nil {
		return OutcomeSkipped, err
	}
	if existing != nil {
		return r.update(existing, src, email, shopifyID)
	}

	rec := r.newRecord(src, email, shopifyID)
	if err := r.customers.Create(rec); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Lost a race with a concurrent create for the same email.
			// The record exists now; retry as an update.
			existing, rerr := r.resolver.ResolveCustomer(email, shopifyID)
			if rerr != nil || existing == nil {
				return OutcomeSkipped, fmt.Errorf("duplicate create but re-resolve failed: %w", rerr)
			}
			return r.update(existing, src, email, shopifyID)
		}
		return OutcomeSkipped, err
	}

	slog.Info("customer created from shopify",
		"component", "customer_sync", "email", email, "shopify_customer_id", shopifyID)
	return OutcomeCreated, nil
}

// update merges a source event into an existing record. Integration
// sub-record fields are the external system's current truth and are written
// unconditionally; profile fields are only filled when empty internally, so
// internal edits survive stale re-syncs.
func (r *CustomerReconciler) update(rec *models.CustomerRecord, src gateway.ShopifyCustomer, email, shopifyID string) (Outcome, error) {
	if rec.ShopifyCustomerID != "" && rec.ShopifyCustomerID != shopifyID {
		// The identifier appears bound to a different record. Rebinding is
		// never done silently; flag for manual review and leave the binding.
		sub := rec.ShopifySub()
		sub.SyncStatus = models.SyncStatusManualReview
		now := time.Now().UTC()
		sub.LastSyncDate = &now
		rec.SetShopifySub(sub)
		rec.AppendAudit(AuditShopifyIDConflict, "SYSTEM", map[string]any{
			"bound_shopify_id":    rec.ShopifyCustomerID,
			"incoming_shopify_id": shopifyID,
			"email":               email,
		})
		if err := r.customers.Save(rec); err != nil {
			return OutcomeSkipped, err
		}
		slog.Error("shopify id conflict, flagged for manual review",
			"component", "customer_sync", "email", email,
			"bound", rec.ShopifyCustomerID, "incoming", shopifyID)
		return OutcomeConflict, nil
	}

	now := time.Now().UTC()
	rec.SetShopifySub(models.ShopifySubRecord{
		ShopifyCustomerID: shopifyID,
		OrdersCount:       src.OrdersCount,
		TotalSpent:        src.TotalSpent,
		LastOrderID:       formatID(src.LastOrderID),
		Tags:              splitTags(src.Tags),
		SyncStatus:        models.SyncStatusSynced,
		LastSyncDate:      &now,
	})

	if rec.FirstName == "" && src.FirstName != "" {
		rec.FirstName = src.FirstName
	}
	if rec.LastName == "" && src.LastName != "" {
		rec.LastName = src.LastName
	}
	if rec.PhoneNumber == "" && src.Phone != "" {
		rec.PhoneNumber = src.Phone
	}

	if err := r.customers.Save(rec); err != nil {
		return OutcomeSkipped, err
	}
	return OutcomeUpdated, nil
}

func (r *CustomerReconciler) newRecord(src gateway.ShopifyCustomer, email, shopifyID string) *models.CustomerRecord {
	now := time.Now().UTC()
	rec := &models.CustomerRecord{
		Email:       email,
		FirstName:   src.FirstName,
		LastName:    src.LastName,
		PhoneNumber: src.Phone,
		Source:      "shopify",
	}
	rec.SetShopifySub(models.ShopifySubRecord{
		ShopifyCustomerID: shopifyID,
		OrdersCount:       src.OrdersCount,
		TotalSpent:        src.TotalSpent,
		LastOrderID:       formatID(src.LastOrderID),
		Tags:              splitTags(src.Tags),
		SyncStatus:        models.SyncStatusSynced,
		LastSyncDate:      &now,
	})
	rec.AppendAudit(AuditCreatedFromShopify, "SYSTEM", nil)
	return rec
}

// ReconcileBatch pages through the Shopify customer list and reconciles
// every record. A page-fetch failure aborts the batch and is surfaced;
// per-record failures are logged and counted only.
func (r *CustomerReconciler) ReconcileBatch(ctx context.Context) (BatchStats, error) {
	var stats BatchStats
	pageToken := ""

	for {
		customers, next, err := r.shopify.ListCustomers(ctx, pageToken)
		if err != nil {
			return stats, fmt.Errorf("customer page fetch failed: %w", err)
		}

		for _, src := range customers {
			outcome, err := r.ReconcileOne(src)
			stats.Processed++
			switch {
			case errors.Is(err, ErrMissingEmail):
				stats.Skipped++
			case err != nil:
				stats.Errors++
				slog.Error("customer reconcile failed",
					"component", "customer_sync", "shopify_customer_id", src.ID, "error", err)
			case outcome == OutcomeCreated:
				stats.Created++
			case outcome == OutcomeConflict:
				stats.Conflicts++
				stats.Errors++
			default:
				stats.Updated++
			}
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	slog.Info("customer batch reconciled",
		"component", "customer_sync", "processed", stats.Processed,
		"created", stats.Created, "updated", stats.Updated,
		"skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}

// POSExportStats aggregates one identity→POS export run.
type POSExportStats struct {
	Candidates int `json:"candidates"`
	Created    int `json:"created"`
	Errors     int `json:"errors"`
}

const posExportBatchSize = 100

// ExportToPOS creates POS-side customers for approved records that have none
// yet. A failed export marks the sub-record with the cause but leaves the
// mirror column empty, so the record stays a candidate for the next run.
func (r *CustomerReconciler) ExportToPOS(ctx context.Context) (POSExportStats, error) {
	var stats POSExportStats

	pending, err := r.customers.ListPendingPOSExport(posExportBatchSize)
	if err != nil {
		return stats, fmt.Errorf("pos export candidate lookup failed: %w", err)
	}
	stats.Candidates = len(pending)

	for i := range pending {
		rec := &pending[i]
		if err := r.exportOne(ctx, rec); err != nil {
			stats.Errors++
			slog.Error("pos customer export failed",
				"component", "customer_sync", "email", rec.Email, "error", err)
			continue
		}
		stats.Created++
	}

	slog.Info("pos customer export completed",
		"component", "customer_sync", "candidates", stats.Candidates,
		"created", stats.Created, "errors", stats.Errors)
	return stats, nil
}

func (r *CustomerReconciler) exportOne(ctx context.Context, rec *models.CustomerRecord) error {
	now := time.Now().UTC()
	sub := rec.ProHandelSub()
	sub.LastSyncDate = &now

	posID, err := r.prohandel.CreateCustomer(ctx, posCustomerPayload(rec))
	if err != nil {
		sub.SyncStatus = models.SyncStatusError
		sub.SyncError = err.Error()
		rec.SetProHandelSub(sub)
		if saveErr := r.customers.Save(rec); saveErr != nil {
			slog.Error("failed to record pos export error",
				"component", "customer_sync", "email", rec.Email, "error", saveErr)
		}
		return err
	}

	sub.ProHandelCustomerID = posID
	sub.IsCreated = true
	sub.SyncStatus = models.SyncStatusSynced
	sub.SyncError = ""
	rec.SetProHandelSub(sub)
	rec.AppendAudit(AuditCreatedInProHandel, "SYSTEM", map[string]any{
		"prohandel_customer_id": posID,
	})
	return r.customers.Save(rec)
}

// posCustomerPayload maps the identity record onto the POS customer schema.
// CountryName defaults to the POS country code for Germany.
func posCustomerPayload(rec *models.CustomerRecord) gateway.POSCustomer {
	return gateway.POSCustomer{
		FirstName:                  rec.FirstName,
		LastName:                   rec.LastName,
		Email:                      rec.Email,
		Phone:                      rec.PhoneNumber,
		Street:                     rec.Street,
		City:                       rec.City,
		ZipCode:                    rec.ZipCode,
		CountryName:                "D",
		SignedDeclarationOfConsent: true,
		Source:                     "identity_sync",
	}
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
