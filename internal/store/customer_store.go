package store

import (
	"errors"
	"fmt"

	"github.com/mercurios-retail/syncbridge/internal/models"
	"gorm.io/gorm"
)

// GormCustomerStore implements CustomerStore on Postgres.
type GormCustomerStore struct {
	db *gorm.DB
}

func NewGormCustomerStore(db *gorm.DB) *GormCustomerStore {
	return &GormCustomerStore{db: db}
}

func (s *GormCustomerStore) FindByEmailOrShopifyID(email, shopifyID string) (*models.CustomerRecord, error) {
	// Email is the higher-priority key; the external id is only consulted
	// when no email match exists.
	var rec models.CustomerRecord
	if email != "" {
		err := s.db.Where("email = ?", email).First(&rec).Error
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("customer lookup by email failed: %w", err)
		}
	}
	if shopifyID != "" {
		err := s.db.Where("shopify_customer_id = ?", shopifyID).First(&rec).Error
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("customer lookup by shopify id failed: %w", err)
		}
	}
	return nil, ErrNotFound
}

func (s *GormCustomerStore) Create(rec *models.CustomerRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("customer create failed: %w", err)
	}
	return nil
}

func (s *GormCustomerStore) Save(rec *models.CustomerRecord) error {
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("customer save failed: %w", err)
	}
	return nil
}

func (s *GormCustomerStore) ListPendingPOSExport(limit int) ([]models.CustomerRecord, error) {
	// Records that errored on a previous export keep an empty mirror column
	// and stay candidates, so the next run retries them.
	var recs []models.CustomerRecord
	err := s.db.
		Where("verification_status = ? AND pro_handel_customer_id = ''", models.VerificationApproved).
		Order("created_at").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("pos export candidate lookup failed: %w", err)
	}
	return recs, nil
}
