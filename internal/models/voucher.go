package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Voucher lifecycle states. Transitions only advance from active; a
// redeemed voucher never becomes active again.
const (
	VoucherStatusActive    = "active"
	VoucherStatusRedeemed  = "redeemed"
	VoucherStatusPartial   = "partial"
	VoucherStatusCancelled = "cancelled"
	VoucherStatusExpired   = "expired"
)

// Voucher sources.
const (
	VoucherSourceProHandel    = "prohandel_import"
	VoucherSourceShopifyOrder = "shopify_order"
)

// VoucherRecord tracks one gift voucher across the Shopify and ProHandel
// sides. A voucher may originate on either side before the other side is
// known, so the POS identifiers are optional but unique when present.
type VoucherRecord struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`

	ShopifyCode       string `gorm:"size:64;not null;uniqueIndex" json:"shopify_code"`
	ShopifyGiftCardID string `gorm:"size:64" json:"shopify_gift_card_id,omitempty"`
	ShopifyOrderID    string `gorm:"size:64;index" json:"shopify_order_id,omitempty"`

	ProHandelNumber *int64  `gorm:"uniqueIndex" json:"prohandel_number,omitempty"`
	ProHandelUUID   *string `gorm:"size:36;uniqueIndex" json:"prohandel_uuid,omitempty"`

	// InitialValue is immutable once set; Value tracks the remaining balance.
	Value        float64 `gorm:"not null" json:"value"`
	InitialValue float64 `gorm:"not null" json:"initial_value"`
	Currency     string  `gorm:"size:3;default:'EUR'" json:"currency"`

	Status string `gorm:"size:20;default:'active';index" json:"status"`

	IssuedAt       time.Time  `json:"issued_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	RedeemedAt     *time.Time `json:"redeemed_at,omitempty"`
	RedeemedAmount float64    `gorm:"default:0" json:"redeemed_amount"`

	// Point-in-time snapshot of the buying customer, for receipt/lookup
	// purposes. Not a live reference.
	Customer datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"customer"`

	Source   string         `gorm:"size:30" json:"source"`
	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (VoucherRecord) TableName() string {
	return "vouchers"
}

// CustomerSnapshot is the buyer captured at purchase time.
type CustomerSnapshot struct {
	ShopifyID string `json:"shopify_id,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// SetCustomerSnapshot encodes the buyer snapshot onto the jsonb column.
func (v *VoucherRecord) SetCustomerSnapshot(s CustomerSnapshot) {
	b, _ := json.Marshal(s)
	v.Customer = datatypes.JSON(b)
}

// CustomerSnapshotValue decodes the buyer snapshot.
func (v *VoucherRecord) CustomerSnapshotValue() CustomerSnapshot {
	var s CustomerSnapshot
	if len(v.Customer) > 0 {
		_ = json.Unmarshal(v.Customer, &s)
	}
	return s
}

// Application kinds.
const (
	ApplicationKindPurchase   = "purchase"
	ApplicationKindRedemption = "redemption"
)

// VoucherApplication records one order's contribution to a voucher. The
// unique index is the redelivery guard: inserting the same (voucher, order,
// kind) twice hits the constraint, which callers treat as "already applied".
type VoucherApplication struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	VoucherID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_voucher_order_kind,priority:1" json:"voucher_id"`
	OrderID   string    `gorm:"size:64;not null;uniqueIndex:ux_voucher_order_kind,priority:2" json:"order_id"`
	Kind      string    `gorm:"size:20;not null;uniqueIndex:ux_voucher_order_kind,priority:3" json:"kind"`
	Amount    float64   `gorm:"not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (VoucherApplication) TableName() string {
	return "voucher_applications"
}
