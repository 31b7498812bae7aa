package sync

import (
	"context"
	"testing"
	"time"

	"github.com/mercurios-retail/syncbridge/internal/gateway"
	"github.com/mercurios-retail/syncbridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVoucherReconciler(vouchers *memVoucherStore, shopify *fakeShopify, prohandel *fakeProHandel) *VoucherReconciler {
	if shopify == nil {
		shopify = &fakeShopify{}
	}
	if prohandel == nil {
		prohandel = &fakeProHandel{}
	}
	resolver := NewResolver(newMemCustomerStore(), vouchers)
	windows := NewWindowTracker(2 * time.Hour)
	return NewVoucherReconciler(vouchers, shopify, prohandel, resolver, windows)
}

func TestSyncImportsNewPOSVoucher(t *testing.T) {
	vouchers := newMemVoucherStore()
	shopify := &fakeShopify{}
	prohandel := &fakeProHandel{vouchers: []gateway.POSVoucher{
		{ID: "uuid-1", Number: 1001, Value: 50.00},
	}}
	r := newVoucherReconciler(vouchers, shopify, prohandel)

	stats, err := r.SyncFromProHandel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.GiftCardsCreated)
	assert.Equal(t, 0, stats.Errors)

	rec := vouchers.mustGet("1001")
	assert.Equal(t, models.VoucherStatusActive, rec.Status)
	assert.Equal(t, 50.00, rec.InitialValue)
	assert.Equal(t, "gc-1", rec.ShopifyGiftCardID)
	require.NotNil(t, rec.ProHandelUUID)
	assert.Equal(t, "uuid-1", *rec.ProHandelUUID)

	// The poll queried a 2h-lookback window.
	assert.WithinDuration(t, time.Now().Add(-2*time.Hour), prohandel.lastSince, time.Minute)
}

func TestSyncPersistsVoucherWhenGiftCardFails(t *testing.T) {
	vouchers := newMemVoucherStore()
	shopify := &fakeShopify{giftCardErr: assert.AnError}
	prohandel := &fakeProHandel{vouchers: []gateway.POSVoucher{
		{ID: "uuid-1", Number: 1001, InternetCode: "WEB-1", Value: 25},
	}}
	r := newVoucherReconciler(vouchers, shopify, prohandel)

	stats, err := r.SyncFromProHandel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.GiftCardFailures)

	// POS is the source of truth for existence; the record persists unbound.
	rec := vouchers.mustGet("WEB-1")
	assert.Empty(t, rec.ShopifyGiftCardID)

	// A later run re-attempts the binding once the storefront recovers.
	shopify.giftCardErr = nil
	stats, err = r.SyncFromProHandel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created, "no duplicate record")
	assert.Equal(t, 1, stats.GiftCardsCreated)
	assert.NotEmpty(t, vouchers.mustGet("WEB-1").ShopifyGiftCardID)
}

func TestSyncIsIdempotentAcrossOverlappingWindows(t *testing.T) {
	vouchers := newMemVoucherStore()
	prohandel := &fakeProHandel{vouchers: []gateway.POSVoucher{
		{ID: "uuid-1", Number: 1001, Value: 50},
	}}
	r := newVoucherReconciler(vouchers, &fakeShopify{}, prohandel)

	_, err := r.SyncFromProHandel(context.Background())
	require.NoError(t, err)
	stats, err := r.SyncFromProHandel(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Created)
	assert.Len(t, vouchers.records, 1)
}

func TestSyncAppliesPOSRedemption(t *testing.T) {
	vouchers := newMemVoucherStore()
	shopify := &fakeShopify{}
	redeemedAt := time.Date(2026, 3, 14, 11, 30, 0, 0, time.UTC)
	prohandel := &fakeProHandel{
		vouchers: []gateway.POSVoucher{{ID: "uuid-1", Number: 1001, Value: 50}},
		redemptions: []gateway.POSRedemption{
			{ID: "uuid-1", VoucherRedemptionDate: redeemedAt},
			{ID: "uuid-unknown"},
		},
	}
	r := newVoucherReconciler(vouchers, shopify, prohandel)

	stats, err := r.SyncFromProHandel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Redeemed)
	assert.Equal(t, 0, stats.Errors, "unknown redemption is logged, not fatal")

	rec := vouchers.mustGet("1001")
	assert.Equal(t, models.VoucherStatusRedeemed, rec.Status)
	require.NotNil(t, rec.RedeemedAt)
	assert.Equal(t, redeemedAt, *rec.RedeemedAt)
	assert.Equal(t, []string{"gc-1"}, shopify.disabled)

	// Duplicate delivery in a later overlapping window is a no-op.
	stats, err = r.SyncFromProHandel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Redeemed)
}

func TestSyncDisableFailureDoesNotRevertRedemption(t *testing.T) {
	vouchers := newMemVoucherStore()
	num := int64(1001)
	posUUID := "uuid-1"
	require.NoError(t, vouchers.Create(&models.VoucherRecord{
		ShopifyCode:       "1001",
		ShopifyGiftCardID: "gc-9",
		ProHandelNumber:   &num,
		ProHandelUUID:     &posUUID,
		Value:             50,
		InitialValue:      50,
		Status:            models.VoucherStatusActive,
	}))

	shopify := &fakeShopify{disableErr: assert.AnError}
	prohandel := &fakeProHandel{redemptions: []gateway.POSRedemption{{ID: "uuid-1"}}}
	r := newVoucherReconciler(vouchers, shopify, prohandel)

	stats, err := r.SyncFromProHandel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Redeemed)
	assert.Equal(t, 1, stats.DisableFailures)

	// Internal state is authoritative once POS confirms redemption.
	assert.Equal(t, models.VoucherStatusRedeemed, vouchers.mustGet("1001").Status)
}

func TestSyncAbortsRunOnFeedFailure(t *testing.T) {
	r := newVoucherReconciler(newMemVoucherStore(), &fakeShopify{}, &fakeProHandel{vouchersErr: assert.AnError})

	_, err := r.SyncFromProHandel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed feed failed")
}

func orderWithGiftCardPurchase() gateway.ShopifyOrder {
	return gateway.ShopifyOrder{
		ID:       9001,
		Currency: "EUR",
		Customer: &gateway.ShopifyCustomer{ID: 77, Email: "A@B.com", FirstName: "Ada"},
		LineItems: []gateway.OrderLineItem{
			{ID: 1, Title: "Gift Card", Quantity: 1, Price: "50.00", GiftCard: true,
				Properties: []gateway.LineProperty{{Name: "code", Value: "GC-ABCD"}}},
			{ID: 2, Title: "Socks", Quantity: 2, Price: "9.90"},
		},
	}
}

func TestProcessOrderCreatesVoucherWithBuyerSnapshot(t *testing.T) {
	vouchers := newMemVoucherStore()
	r := newVoucherReconciler(vouchers, nil, nil)

	stats, err := r.ProcessOrder(context.Background(), orderWithGiftCardPurchase())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.VouchersCreated)

	rec := vouchers.mustGet("GC-ABCD")
	assert.Equal(t, models.VoucherStatusActive, rec.Status)
	assert.Equal(t, 50.00, rec.InitialValue)
	assert.Equal(t, "9001", rec.ShopifyOrderID)
	assert.Equal(t, models.VoucherSourceShopifyOrder, rec.Source)

	snap := rec.CustomerSnapshotValue()
	assert.Equal(t, "77", snap.ShopifyID)
	assert.Equal(t, "a@b.com", snap.Email)
	assert.Equal(t, "Ada", snap.FirstName)
}

func TestProcessOrderRedeliveryCreatesNoDuplicate(t *testing.T) {
	vouchers := newMemVoucherStore()
	r := newVoucherReconciler(vouchers, nil, nil)

	order := orderWithGiftCardPurchase()
	_, err := r.ProcessOrder(context.Background(), order)
	require.NoError(t, err)
	stats, err := r.ProcessOrder(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.VouchersCreated)
	assert.Len(t, vouchers.records, 1)
}

func TestProcessOrderPartialRedemption(t *testing.T) {
	vouchers := newMemVoucherStore()
	require.NoError(t, vouchers.Create(&models.VoucherRecord{
		ShopifyCode: "GC-ABCD", Value: 50, InitialValue: 50, Status: models.VoucherStatusActive,
	}))
	r := newVoucherReconciler(vouchers, nil, nil)

	order := gateway.ShopifyOrder{
		ID: 9002,
		GiftCardTransactions: []gateway.GiftCardTransaction{
			{Code: "GC-ABCD", AmountUsed: 20.00, BalanceAfter: 30.00},
		},
	}

	stats, err := r.ProcessOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RedemptionsApplied)

	rec := vouchers.mustGet("GC-ABCD")
	assert.Equal(t, models.VoucherStatusPartial, rec.Status)
	assert.Equal(t, 20.00, rec.RedeemedAmount)
	assert.Equal(t, 30.00, rec.Value)

	// Replaying the identical payload leaves the delta unapplied.
	stats, err = r.ProcessOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RedemptionsApplied)
	assert.Equal(t, 1, stats.AlreadyApplied)
	assert.Equal(t, 20.00, vouchers.mustGet("GC-ABCD").RedeemedAmount)
}

func TestProcessOrderRedemptionRetriesAfterFailedSave(t *testing.T) {
	vouchers := newMemVoucherStore()
	require.NoError(t, vouchers.Create(&models.VoucherRecord{
		ShopifyCode: "GC-ABCD", Value: 50, InitialValue: 50, Status: models.VoucherStatusActive,
	}))
	r := newVoucherReconciler(vouchers, nil, nil)

	order := gateway.ShopifyOrder{
		ID:                   9002,
		GiftCardTransactions: []gateway.GiftCardTransaction{{Code: "GC-ABCD", AmountUsed: 20.00}},
	}

	// A transient store failure must not leave an application record behind,
	// or the redelivered order would be mistaken for already applied.
	vouchers.saveErr = assert.AnError
	stats, err := r.ProcessOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0.00, vouchers.mustGet("GC-ABCD").RedeemedAmount)

	vouchers.saveErr = nil
	stats, err = r.ProcessOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RedemptionsApplied)
	assert.Equal(t, 0, stats.AlreadyApplied)
	assert.Equal(t, 20.00, vouchers.mustGet("GC-ABCD").RedeemedAmount)
}

func TestProcessOrderFullRedemptionTransitions(t *testing.T) {
	vouchers := newMemVoucherStore()
	require.NoError(t, vouchers.Create(&models.VoucherRecord{
		ShopifyCode: "GC-ABCD", Value: 50, InitialValue: 50, Status: models.VoucherStatusActive,
	}))
	r := newVoucherReconciler(vouchers, nil, nil)

	_, err := r.ProcessOrder(context.Background(), gateway.ShopifyOrder{
		ID:                   9002,
		GiftCardTransactions: []gateway.GiftCardTransaction{{Code: "GC-ABCD", AmountUsed: 50}},
	})
	require.NoError(t, err)

	rec := vouchers.mustGet("GC-ABCD")
	assert.Equal(t, models.VoucherStatusRedeemed, rec.Status)
	assert.NotNil(t, rec.RedeemedAt)
	assert.Equal(t, 0.00, rec.Value)
}

func TestProcessOrderClampsExcessRedemption(t *testing.T) {
	vouchers := newMemVoucherStore()
	require.NoError(t, vouchers.Create(&models.VoucherRecord{
		ShopifyCode: "GC-ABCD", Value: 10, InitialValue: 50, RedeemedAmount: 40,
		Status: models.VoucherStatusPartial,
	}))
	r := newVoucherReconciler(vouchers, nil, nil)

	stats, err := r.ProcessOrder(context.Background(), gateway.ShopifyOrder{
		ID:                   9003,
		GiftCardTransactions: []gateway.GiftCardTransaction{{Code: "GC-ABCD", AmountUsed: 25}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Clamped)

	rec := vouchers.mustGet("GC-ABCD")
	assert.Equal(t, 50.00, rec.RedeemedAmount, "never exceeds initial value")
	assert.Equal(t, models.VoucherStatusRedeemed, rec.Status)
}

func TestVoucherStatusNeverRegresses(t *testing.T) {
	vouchers := newMemVoucherStore()
	redeemedAt := time.Now().UTC()
	num := int64(1001)
	posUUID := "uuid-1"
	require.NoError(t, vouchers.Create(&models.VoucherRecord{
		ShopifyCode: "1001", ProHandelNumber: &num, ProHandelUUID: &posUUID,
		Value: 0, InitialValue: 50, RedeemedAmount: 50,
		Status: models.VoucherStatusRedeemed, RedeemedAt: &redeemedAt,
	}))

	// POS reports the voucher as changed again after redemption.
	prohandel := &fakeProHandel{vouchers: []gateway.POSVoucher{{ID: "uuid-1", Number: 1001, Value: 50}}}
	shopify := &fakeShopify{}
	r := newVoucherReconciler(vouchers, shopify, prohandel)

	stats, err := r.SyncFromProHandel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)

	rec := vouchers.mustGet("1001")
	assert.Equal(t, models.VoucherStatusRedeemed, rec.Status)
	assert.Empty(t, shopify.createdGift, "no gift card for a redeemed voucher")

	// A late order redemption against a redeemed voucher keeps it redeemed.
	_, err = r.ProcessOrder(context.Background(), gateway.ShopifyOrder{
		ID:                   9004,
		GiftCardTransactions: []gateway.GiftCardTransaction{{Code: "1001", AmountUsed: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.VoucherStatusRedeemed, vouchers.mustGet("1001").Status)
}
