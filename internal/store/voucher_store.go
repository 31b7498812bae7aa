package store

import (
	"errors"
	"fmt"

	"github.com/mercurios-retail/syncbridge/internal/models"
	"gorm.io/gorm"
)

// GormVoucherStore implements VoucherStore on Postgres.
type GormVoucherStore struct {
	db *gorm.DB
}

func NewGormVoucherStore(db *gorm.DB) *GormVoucherStore {
	return &GormVoucherStore{db: db}
}

func (s *GormVoucherStore) FindByKeys(posUUID string, posNumber int64, code string) (*models.VoucherRecord, error) {
	// Priority order: POS uuid, POS number, Shopify code.
	var rec models.VoucherRecord
	if posUUID != "" {
		err := s.db.Where("pro_handel_uuid = ?", posUUID).First(&rec).Error
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("voucher lookup by pos uuid failed: %w", err)
		}
	}
	if posNumber != 0 {
		err := s.db.Where("pro_handel_number = ?", posNumber).First(&rec).Error
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("voucher lookup by pos number failed: %w", err)
		}
	}
	if code != "" {
		return s.FindByCode(code)
	}
	return nil, ErrNotFound
}

func (s *GormVoucherStore) FindByPOSUUID(posUUID string) (*models.VoucherRecord, error) {
	if posUUID == "" {
		return nil, ErrNotFound
	}
	var rec models.VoucherRecord
	if err := s.db.Where("pro_handel_uuid = ?", posUUID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("voucher lookup by pos uuid failed: %w", err)
	}
	return &rec, nil
}

func (s *GormVoucherStore) FindByCode(code string) (*models.VoucherRecord, error) {
	if code == "" {
		return nil, ErrNotFound
	}
	var rec models.VoucherRecord
	if err := s.db.Where("shopify_code = ?", code).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("voucher lookup by code failed: %w", err)
	}
	return &rec, nil
}

func (s *GormVoucherStore) Create(rec *models.VoucherRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("voucher create failed: %w", err)
	}
	return nil
}

func (s *GormVoucherStore) Save(rec *models.VoucherRecord) error {
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("voucher save failed: %w", err)
	}
	return nil
}

func (s *GormVoucherStore) RecordApplication(app *models.VoucherApplication) error {
	if err := s.db.Create(app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("voucher application insert failed: %w", err)
	}
	return nil
}

func (s *GormVoucherStore) ApplyRedemption(rec *models.VoucherRecord, app *models.VoucherApplication) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyApplied
			}
			return fmt.Errorf("voucher application insert failed: %w", err)
		}
		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("voucher save failed: %w", err)
		}
		return nil
	})
}
