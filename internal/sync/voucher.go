package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mercurios-retail/syncbridge/internal/gateway"
	"github.com/mercurios-retail/syncbridge/internal/models"
	"github.com/mercurios-retail/syncbridge/internal/store"
)

// VoucherSyncStats aggregates one POS→storefront poll run.
type VoucherSyncStats struct {
	Fetched          int `json:"fetched"`
	Created          int `json:"created"`
	GiftCardsCreated int `json:"gift_cards_created"`
	GiftCardFailures int `json:"gift_card_failures"`
	Redeemed         int `json:"redeemed"`
	DisableFailures  int `json:"disable_failures"`
	Errors           int `json:"errors"`
}

// OrderStats aggregates one storefront order's voucher processing.
type OrderStats struct {
	VouchersCreated    int `json:"vouchers_created"`
	RedemptionsApplied int `json:"redemptions_applied"`
	AlreadyApplied     int `json:"already_applied"`
	Clamped            int `json:"clamped"`
	Errors             int `json:"errors"`
}

// VoucherReconciler keeps gift vouchers consistent between the ProHandel POS
// and Shopify. The two directions are independent and individually
// triggerable; both are idempotent, so overlapping windows and webhook
// redeliveries are safe.
type VoucherReconciler struct {
	vouchers  store.VoucherStore
	shopify   gateway.Shopify
	prohandel gateway.ProHandel
	resolver  *Resolver
	windows   *WindowTracker
}

func NewVoucherReconciler(
	vouchers store.VoucherStore,
	shopify gateway.Shopify,
	prohandel gateway.ProHandel,
	resolver *Resolver,
	windows *WindowTracker,
) *VoucherReconciler {
	return &VoucherReconciler{
		vouchers:  vouchers,
		shopify:   shopify,
		prohandel: prohandel,
		resolver:  resolver,
		windows:   windows,
	}
}

// SyncFromProHandel runs one poll cycle: import newly issued POS vouchers as
// storefront gift cards, then mirror POS redemptions by disabling the bound
// gift cards. A feed fetch failure aborts only this run; the next cycle's
// window re-covers the same changes.
func (r *VoucherReconciler) SyncFromProHandel(ctx context.Context) (VoucherSyncStats, error) {
	var stats VoucherSyncStats
	win := r.windows.Next(time.Now().UTC())

	changed, err := r.prohandel.ListVouchersChangedSince(ctx, win.Since)
	if err != nil {
		return stats, fmt.Errorf("voucher changed feed failed: %w", err)
	}
	stats.Fetched = len(changed)

	for _, posV := range changed {
		if err := r.importVoucher(ctx, posV, &stats); err != nil {
			stats.Errors++
			slog.Error("voucher import failed",
				"component", "voucher_sync", "pos_uuid", posV.ID, "pos_number", posV.Number, "error", err)
		}
	}

	redemptions, err := r.prohandel.ListRedemptionsChangedSince(ctx, win.Since)
	if err != nil {
		return stats, fmt.Errorf("redemption changed feed failed: %w", err)
	}

	for _, red := range redemptions {
		if err := r.applyPOSRedemption(ctx, red, &stats); err != nil {
			stats.Errors++
			slog.Error("redemption sync failed",
				"component", "voucher_sync", "pos_uuid", red.ID, "error", err)
		}
	}

	slog.Info("prohandel voucher sync completed",
		"component", "voucher_sync", "fetched", stats.Fetched,
		"created", stats.Created, "redeemed", stats.Redeemed, "errors", stats.Errors)
	return stats, nil
}

// importVoucher creates the internal record for a POS voucher seen for the
// first time, then best-effort creates the storefront gift card. The
// internal record persists even when the gift card call fails: POS is the
// source of truth for existence, and a later run re-attempts the binding
// because matching is keyed by POS identity, not time.
func (r *VoucherReconciler) importVoucher(ctx context.Context, posV gateway.POSVoucher, stats *VoucherSyncStats) error {
	code := posV.InternetCode
	if code == "" {
		code = strconv.FormatInt(posV.Number, 10)
	}

	existing, err := r.resolver.ResolveVoucher(posV.ID, posV.Number, code)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.ShopifyGiftCardID == "" && existing.Status == models.VoucherStatusActive {
			r.bindGiftCard(ctx, existing, stats)
		}
		return nil
	}

	issuedAt := posV.Date
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	rec := &models.VoucherRecord{
		ShopifyCode:     code,
		ProHandelNumber: &posV.Number,
		ProHandelUUID:   &posV.ID,
		Value:           posV.Value,
		InitialValue:    posV.Value,
		Status:          models.VoucherStatusActive,
		IssuedAt:        issuedAt,
		Source:          models.VoucherSourceProHandel,
	}

	if err := r.vouchers.Create(rec); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Concurrent run already imported it.
			return nil
		}
		return err
	}
	stats.Created++
	slog.Info("prohandel voucher imported",
		"component", "voucher_sync", "code", code, "value", posV.Value)

	r.bindGiftCard(ctx, rec, stats)
	return nil
}

// bindGiftCard creates the storefront gift card for an internal voucher and
// saves the binding. Failures are logged and counted only.
func (r *VoucherReconciler) bindGiftCard(ctx context.Context, rec *models.VoucherRecord, stats *VoucherSyncStats) {
	note := "ProHandel Import"
	if rec.ProHandelNumber != nil {
		note = fmt.Sprintf("ProHandel Import: %d", *rec.ProHandelNumber)
	}

	giftCardID, err := r.shopify.CreateGiftCard(ctx, rec.ShopifyCode, rec.InitialValue, note)
	if err != nil {
		stats.GiftCardFailures++
		slog.Error("shopify gift card creation failed",
			"component", "voucher_sync", "code", rec.ShopifyCode, "error", err)
		return
	}

	rec.ShopifyGiftCardID = giftCardID
	if err := r.vouchers.Save(rec); err != nil {
		stats.GiftCardFailures++
		slog.Error("failed to save gift card binding",
			"component", "voucher_sync", "code", rec.ShopifyCode, "error", err)
		return
	}
	stats.GiftCardsCreated++
}

// applyPOSRedemption advances a voucher to redeemed when POS reports it
// redeemed. The already-redeemed guard makes duplicate delivery across
// overlapping windows a no-op; the storefront disable is a best-effort
// mirror and never reverts the internal transition.
func (r *VoucherReconciler) applyPOSRedemption(ctx context.Context, red gateway.POSRedemption, stats *VoucherSyncStats) error {
	rec, err := r.vouchers.FindByPOSUUID(red.ID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("redemption for unknown voucher",
			"component", "voucher_sync", "pos_uuid", red.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Status == models.VoucherStatusRedeemed {
		return nil
	}

	redeemedAt := red.VoucherRedemptionDate
	if redeemedAt.IsZero() {
		redeemedAt = time.Now().UTC()
	}

	rec.Status = models.VoucherStatusRedeemed
	rec.RedeemedAt = &redeemedAt
	rec.RedeemedAmount = rec.InitialValue
	rec.Value = 0

	if err := r.vouchers.Save(rec); err != nil {
		return err
	}
	stats.Redeemed++
	slog.Info("voucher redeemed from prohandel",
		"component", "voucher_sync", "code", rec.ShopifyCode)

	if rec.ShopifyGiftCardID != "" {
		if err := r.shopify.DisableGiftCard(ctx, rec.ShopifyGiftCardID); err != nil {
			stats.DisableFailures++
			slog.Error("shopify gift card disable failed",
				"component", "voucher_sync", "gift_card_id", rec.ShopifyGiftCardID, "error", err)
		}
	}
	return nil
}

// ProcessOrder handles one paid storefront order: gift-card purchases on its
// line items become new vouchers, and gift-card payments against it advance
// existing vouchers. Webhook redelivery must be assumed, so every mutation
// is guarded: creates by the unique code constraint, redemption deltas by
// the per-order application record.
func (r *VoucherReconciler) ProcessOrder(ctx context.Context, order gateway.ShopifyOrder) (OrderStats, error) {
	var stats OrderStats
	orderID := strconv.FormatInt(order.ID, 10)

	for _, line := range order.LineItems {
		if !line.GiftCard {
			continue
		}
		if err := r.createOrderVoucher(order, line, orderID, &stats); err != nil {
			stats.Errors++
			slog.Error("order voucher creation failed",
				"component", "voucher_sync", "order_id", orderID, "line_id", line.ID, "error", err)
		}
	}

	for _, tx := range order.GiftCardTransactions {
		if err := r.applyOrderRedemption(tx, orderID, &stats); err != nil {
			stats.Errors++
			slog.Error("order redemption failed",
				"component", "voucher_sync", "order_id", orderID, "code", tx.Code, "error", err)
		}
	}

	slog.Info("order vouchers processed",
		"component", "voucher_sync", "order_id", orderID,
		"created", stats.VouchersCreated, "redemptions", stats.RedemptionsApplied,
		"already_applied", stats.AlreadyApplied, "errors", stats.Errors)
	return stats, nil
}

func (r *VoucherReconciler) createOrderVoucher(order gateway.ShopifyOrder, line gateway.OrderLineItem, orderID string, stats *OrderStats) error {
	code := lineVoucherCode(line, orderID)

	value, err := strconv.ParseFloat(line.Price, 64)
	if err != nil {
		return fmt.Errorf("unparseable line price %q: %w", line.Price, err)
	}

	rec := &models.VoucherRecord{
		ShopifyCode:    code,
		ShopifyOrderID: orderID,
		Value:          value,
		InitialValue:   value,
		Currency:       order.Currency,
		Status:         models.VoucherStatusActive,
		IssuedAt:       time.Now().UTC(),
		Source:         models.VoucherSourceShopifyOrder,
	}
	if order.Customer != nil {
		rec.SetCustomerSnapshot(models.CustomerSnapshot{
			ShopifyID: strconv.FormatInt(order.Customer.ID, 10),
			Email:     NormalizeEmail(order.Customer.Email),
			FirstName: order.Customer.FirstName,
			LastName:  order.Customer.LastName,
		})
	}

	if err := r.vouchers.Create(rec); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Redelivered order; the voucher already exists.
			return nil
		}
		return err
	}

	app := &models.VoucherApplication{
		VoucherID: rec.ID,
		OrderID:   orderID,
		Kind:      models.ApplicationKindPurchase,
		Amount:    value,
	}
	if err := r.vouchers.RecordApplication(app); err != nil && !errors.Is(err, store.ErrAlreadyApplied) {
		slog.Error("failed to record purchase application",
			"component", "voucher_sync", "order_id", orderID, "code", code, "error", err)
	}

	stats.VouchersCreated++
	slog.Info("voucher created from order",
		"component", "voucher_sync", "order_id", orderID, "code", code, "value", value)
	return nil
}

// applyOrderRedemption applies one gift-card payment to its voucher. The
// application record and the voucher delta commit together: a redelivered
// order hits the unique constraint and is skipped, and a failed save rolls
// the record back so the next delivery can still apply the delta.
func (r *VoucherReconciler) applyOrderRedemption(tx gateway.GiftCardTransaction, orderID string, stats *OrderStats) error {
	rec, err := r.vouchers.FindByCode(tx.Code)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("gift card payment for unknown voucher",
			"component", "voucher_sync", "order_id", orderID, "code", tx.Code)
		return nil
	}
	if err != nil {
		return err
	}

	amount := tx.AmountUsed
	clamped := false
	if rec.RedeemedAmount+amount > rec.InitialValue {
		// Data integrity anomaly: clamp instead of failing the order.
		amount = rec.InitialValue - rec.RedeemedAmount
		clamped = true
	}

	rec.RedeemedAmount += amount
	rec.Value = rec.InitialValue - rec.RedeemedAmount

	// Status only ever advances.
	if rec.Status == models.VoucherStatusActive || rec.Status == models.VoucherStatusPartial {
		if rec.RedeemedAmount >= rec.InitialValue {
			rec.Status = models.VoucherStatusRedeemed
			now := time.Now().UTC()
			rec.RedeemedAt = &now
		} else {
			rec.Status = models.VoucherStatusPartial
		}
	}

	app := &models.VoucherApplication{
		VoucherID: rec.ID,
		OrderID:   orderID,
		Kind:      models.ApplicationKindRedemption,
		Amount:    tx.AmountUsed,
	}
	if err := r.vouchers.ApplyRedemption(rec, app); err != nil {
		if errors.Is(err, store.ErrAlreadyApplied) {
			stats.AlreadyApplied++
			return nil
		}
		return err
	}

	if clamped {
		stats.Clamped++
		slog.Error("redemption exceeds initial value, clamping",
			"component", "voucher_sync", "order_id", orderID, "code", tx.Code,
			"amount", tx.AmountUsed, "clamped", amount)
	}
	stats.RedemptionsApplied++
	return nil
}

// lineVoucherCode returns the generated code for a gift-card line. When the
// payload carries no code property the fallback is derived from order and
// line ids so a redelivered payload produces the same code.
func lineVoucherCode(line gateway.OrderLineItem, orderID string) string {
	for _, p := range line.Properties {
		if p.Name == "code" && p.Value != "" {
			return p.Value
		}
	}
	return fmt.Sprintf("GIFT-%s-%d", orderID, line.ID)
}
