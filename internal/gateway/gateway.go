// Package gateway holds the thin request/response contracts against the
// Shopify Admin API and the ProHandel POS API, plus their HTTP
// implementations. Every call carries a timeout via the shared http.Client
// and the request context; nothing here retries — re-delivery and the next
// poll cycle are the retry mechanism.
package gateway

import (
	"context"
	"time"
)

// ShopifyCustomer is a customer as reported by the Shopify Admin API or a
// customer webhook payload.
type ShopifyCustomer struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	OrdersCount int    `json:"orders_count"`
	TotalSpent  string `json:"total_spent"`
	LastOrderID int64  `json:"last_order_id"`
	Tags        string `json:"tags"`
}

// ShopifyOrder is the orders/paid webhook payload, reduced to the fields the
// voucher reconciler scans.
type ShopifyOrder struct {
	ID        int64            `json:"id"`
	Email     string           `json:"email"`
	Currency  string           `json:"currency"`
	Customer  *ShopifyCustomer `json:"customer"`
	LineItems []OrderLineItem  `json:"line_items"`

	// Gift-card payments applied to this order.
	GiftCardTransactions []GiftCardTransaction `json:"gift_card_transactions"`
}

// OrderLineItem is one purchased line on an order.
type OrderLineItem struct {
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	Quantity   int            `json:"quantity"`
	Price      string         `json:"price"`
	GiftCard   bool           `json:"gift_card"`
	Properties []LineProperty `json:"properties"`
}

// LineProperty is a custom key/value on a line item. Gift-card lines carry
// the generated code under the "code" property.
type LineProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// GiftCardTransaction is one gift-card payment against an order.
type GiftCardTransaction struct {
	GiftCardID   int64   `json:"gift_card_id"`
	Code         string  `json:"code"`
	AmountUsed   float64 `json:"amount_used"`
	BalanceAfter float64 `json:"balance_after"`
}

// Shopify is the storefront gateway contract.
type Shopify interface {
	// ListCustomers fetches one page of customers. pageToken is the
	// page_info cursor from the previous page; empty for the first page. An
	// empty returned token means no further page.
	ListCustomers(ctx context.Context, pageToken string) ([]ShopifyCustomer, string, error)

	// CreateGiftCard creates a storefront gift card and returns its id.
	CreateGiftCard(ctx context.Context, code string, value float64, note string) (string, error)

	// DisableGiftCard disables a storefront gift card.
	DisableGiftCard(ctx context.Context, id string) error
}

// POSVoucher is a voucher as reported by the ProHandel changed feed.
type POSVoucher struct {
	ID           string    `json:"id"`
	Number       int64     `json:"number"`
	InternetCode string    `json:"internetCode"`
	Value        float64   `json:"value"`
	Date         time.Time `json:"date"`
}

// POSRedemption is a redemption event from the ProHandel redemption feed.
type POSRedemption struct {
	ID                    string    `json:"id"`
	VoucherRedemptionDate time.Time `json:"voucherRedemptionDate"`
	Amount                float64   `json:"amount"`
}

// POSCustomer is the payload for creating a customer on the ProHandel side.
// The consent and flag fields are required by the POS API.
type POSCustomer struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`
	CountryName string `json:"countryName,omitempty"`

	SignedDeclarationOfConsent bool   `json:"signedDeclarationOfConsent"`
	IsBusiness                 bool   `json:"isBusiness"`
	IsStaff                    bool   `json:"isStaff"`
	IsLocked                   bool   `json:"isLocked"`
	Source                     string `json:"source,omitempty"`
}

// ProHandel is the POS gateway contract. Implementations handle the
// key/secret token exchange internally; the short-lived bearer token is
// cached and re-fetched when the POS rejects it.
type ProHandel interface {
	ListVouchersChangedSince(ctx context.Context, since time.Time) ([]POSVoucher, error)
	ListRedemptionsChangedSince(ctx context.Context, since time.Time) ([]POSRedemption, error)

	// CreateCustomer creates the POS-side customer and returns its id.
	CreateCustomer(ctx context.Context, cust POSCustomer) (string, error)
}
