package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Integration sub-record sync states.
const (
	SyncStatusPending      = "pending"
	SyncStatusSynced       = "synced"
	SyncStatusError        = "error"
	SyncStatusManualReview = "manual_review"
)

// Verification states. Only approved customers are exported to the POS.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
)

// CustomerRecord is the canonical internal customer entity. It is owned by
// the identity store; external systems only contribute to it through the
// reconcilers. Records are never hard-deleted, only status-flagged.
type CustomerRecord struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`

	// Normalized (lower-cased, trimmed) email, the primary natural key.
	Email string `gorm:"size:320;not null;uniqueIndex" json:"email"`

	FirstName   string `gorm:"size:100" json:"first_name"`
	LastName    string `gorm:"size:100" json:"last_name"`
	PhoneNumber string `gorm:"size:50" json:"phone_number"`
	Street      string `gorm:"size:255" json:"street"`
	City        string `gorm:"size:100" json:"city"`
	ZipCode     string `gorm:"size:20" json:"zip_code"`

	// External identifiers mirrored out of the jsonb sub-records so key
	// lookups stay on indexed columns. Once bound they must keep resolving
	// to this record; rebinding requires manual review.
	ShopifyCustomerID   string `gorm:"size:64;index" json:"shopify_customer_id"`
	ProHandelCustomerID string `gorm:"size:64;index" json:"prohandel_customer_id"`

	VerificationStatus string `gorm:"size:30;default:'pending';index" json:"verification_status"`
	Status             string `gorm:"size:20;default:'Active'" json:"status"`
	Source             string `gorm:"size:30" json:"source"`

	ShopifyIntegration   datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"shopify_integration"`
	ProHandelIntegration datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"prohandel_integration"`

	// Append-only audit trail.
	AuditTrail datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"audit_trail"`

	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CustomerRecord) TableName() string {
	return "identity_customers"
}

// ShopifySubRecord is the Shopify integration sub-record stored as jsonb on
// CustomerRecord. Its fields represent Shopify's current truth and are
// overwritten on every sync event, unlike profile fields.
type ShopifySubRecord struct {
	ShopifyCustomerID string     `json:"shopify_customer_id,omitempty"`
	OrdersCount       int        `json:"orders_count"`
	TotalSpent        string     `json:"total_spent"`
	LastOrderID       string     `json:"last_order_id,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	SyncStatus        string     `json:"sync_status"`
	LastSyncDate      *time.Time `json:"last_sync_date,omitempty"`
}

// ProHandelSubRecord is the ProHandel integration sub-record stored as jsonb
// on CustomerRecord.
type ProHandelSubRecord struct {
	ProHandelCustomerID string     `json:"prohandel_customer_id,omitempty"`
	CustomerNumber      int64      `json:"customer_number,omitempty"`
	IsCreated           bool       `json:"is_created"`
	SyncStatus          string     `json:"sync_status"`
	LastSyncDate        *time.Time `json:"last_sync_date,omitempty"`
	SyncError           string     `json:"sync_error,omitempty"`
}

// AuditEntry is one element of the append-only audit trail.
type AuditEntry struct {
	Action      string         `json:"action"`
	PerformedBy string         `json:"performed_by"`
	PerformedAt time.Time      `json:"performed_at"`
	Details     map[string]any `json:"details,omitempty"`
}

// ShopifySub decodes the Shopify sub-record. A missing or empty column
// yields a zero sub-record with status pending.
func (c *CustomerRecord) ShopifySub() ShopifySubRecord {
	sub := ShopifySubRecord{SyncStatus: SyncStatusPending}
	if len(c.ShopifyIntegration) > 0 {
		_ = json.Unmarshal(c.ShopifyIntegration, &sub)
	}
	return sub
}

// SetShopifySub encodes the sub-record back onto the jsonb column and keeps
// the indexed mirror column in step.
func (c *CustomerRecord) SetShopifySub(sub ShopifySubRecord) {
	b, _ := json.Marshal(sub)
	c.ShopifyIntegration = datatypes.JSON(b)
	if sub.ShopifyCustomerID != "" {
		c.ShopifyCustomerID = sub.ShopifyCustomerID
	}
}

// ProHandelSub decodes the ProHandel sub-record.
func (c *CustomerRecord) ProHandelSub() ProHandelSubRecord {
	sub := ProHandelSubRecord{SyncStatus: SyncStatusPending}
	if len(c.ProHandelIntegration) > 0 {
		_ = json.Unmarshal(c.ProHandelIntegration, &sub)
	}
	return sub
}

// SetProHandelSub encodes the sub-record back onto the jsonb column.
func (c *CustomerRecord) SetProHandelSub(sub ProHandelSubRecord) {
	b, _ := json.Marshal(sub)
	c.ProHandelIntegration = datatypes.JSON(b)
	if sub.ProHandelCustomerID != "" {
		c.ProHandelCustomerID = sub.ProHandelCustomerID
	}
}

// AppendAudit adds an entry to the audit trail. Existing entries are never
// modified or removed.
func (c *CustomerRecord) AppendAudit(action, performedBy string, details map[string]any) {
	var trail []AuditEntry
	if len(c.AuditTrail) > 0 {
		_ = json.Unmarshal(c.AuditTrail, &trail)
	}
	trail = append(trail, AuditEntry{
		Action:      action,
		PerformedBy: performedBy,
		PerformedAt: time.Now().UTC(),
		Details:     details,
	})
	b, _ := json.Marshal(trail)
	c.AuditTrail = datatypes.JSON(b)
}

// Audit decodes the audit trail.
func (c *CustomerRecord) Audit() []AuditEntry {
	var trail []AuditEntry
	if len(c.AuditTrail) > 0 {
		_ = json.Unmarshal(c.AuditTrail, &trail)
	}
	return trail
}
