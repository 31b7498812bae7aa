package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mercurios-retail/syncbridge/internal/gateway"
	"github.com/mercurios-retail/syncbridge/internal/models"
	"github.com/mercurios-retail/syncbridge/internal/store"
)

// In-memory store fakes. They enforce the same unique constraints as the
// Postgres implementations so reconcilers see identical control flow.

type memCustomerStore struct {
	records []*models.CustomerRecord
	saveErr error
	listErr error
}

func newMemCustomerStore() *memCustomerStore {
	return &memCustomerStore{}
}

func (s *memCustomerStore) FindByEmailOrShopifyID(email, shopifyID string) (*models.CustomerRecord, error) {
	if email != "" {
		for _, r := range s.records {
			if r.Email == email {
				clone := *r
				return &clone, nil
			}
		}
	}
	if shopifyID != "" {
		for _, r := range s.records {
			if r.ShopifyCustomerID == shopifyID {
				clone := *r
				return &clone, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (s *memCustomerStore) Create(rec *models.CustomerRecord) error {
	for _, r := range s.records {
		if r.Email == rec.Email {
			return store.ErrDuplicateKey
		}
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	clone := *rec
	s.records = append(s.records, &clone)
	return nil
}

func (s *memCustomerStore) Save(rec *models.CustomerRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	for i, r := range s.records {
		if r.ID == rec.ID {
			clone := *rec
			s.records[i] = &clone
			return nil
		}
	}
	clone := *rec
	s.records = append(s.records, &clone)
	return nil
}

func (s *memCustomerStore) ListPendingPOSExport(limit int) ([]models.CustomerRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.CustomerRecord
	for _, r := range s.records {
		if len(out) == limit {
			break
		}
		if r.VerificationStatus == models.VerificationApproved && r.ProHandelCustomerID == "" {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memCustomerStore) mustGet(email string) *models.CustomerRecord {
	for _, r := range s.records {
		if r.Email == email {
			return r
		}
	}
	panic("no record for " + email)
}

type memVoucherStore struct {
	records      []*models.VoucherRecord
	applications map[string]bool
	saveErr      error
}

func newMemVoucherStore() *memVoucherStore {
	return &memVoucherStore{applications: make(map[string]bool)}
}

func (s *memVoucherStore) FindByKeys(posUUID string, posNumber int64, code string) (*models.VoucherRecord, error) {
	if posUUID != "" {
		if rec, err := s.FindByPOSUUID(posUUID); err == nil {
			return rec, nil
		}
	}
	if posNumber != 0 {
		for _, r := range s.records {
			if r.ProHandelNumber != nil && *r.ProHandelNumber == posNumber {
				clone := *r
				return &clone, nil
			}
		}
	}
	if code != "" {
		return s.FindByCode(code)
	}
	return nil, store.ErrNotFound
}

func (s *memVoucherStore) FindByPOSUUID(posUUID string) (*models.VoucherRecord, error) {
	for _, r := range s.records {
		if r.ProHandelUUID != nil && *r.ProHandelUUID == posUUID {
			clone := *r
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memVoucherStore) FindByCode(code string) (*models.VoucherRecord, error) {
	for _, r := range s.records {
		if r.ShopifyCode == code {
			clone := *r
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memVoucherStore) Create(rec *models.VoucherRecord) error {
	for _, r := range s.records {
		if r.ShopifyCode == rec.ShopifyCode {
			return store.ErrDuplicateKey
		}
		if rec.ProHandelUUID != nil && r.ProHandelUUID != nil && *r.ProHandelUUID == *rec.ProHandelUUID {
			return store.ErrDuplicateKey
		}
		if rec.ProHandelNumber != nil && r.ProHandelNumber != nil && *r.ProHandelNumber == *rec.ProHandelNumber {
			return store.ErrDuplicateKey
		}
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	clone := *rec
	s.records = append(s.records, &clone)
	return nil
}

func (s *memVoucherStore) Save(rec *models.VoucherRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	for i, r := range s.records {
		if r.ID == rec.ID {
			clone := *rec
			s.records[i] = &clone
			return nil
		}
	}
	clone := *rec
	s.records = append(s.records, &clone)
	return nil
}

func (s *memVoucherStore) RecordApplication(app *models.VoucherApplication) error {
	key := app.VoucherID.String() + "|" + app.OrderID + "|" + app.Kind
	if s.applications[key] {
		return store.ErrAlreadyApplied
	}
	s.applications[key] = true
	return nil
}

// ApplyRedemption mirrors the Postgres transaction: a failed save leaves no
// application record behind.
func (s *memVoucherStore) ApplyRedemption(rec *models.VoucherRecord, app *models.VoucherApplication) error {
	key := app.VoucherID.String() + "|" + app.OrderID + "|" + app.Kind
	if s.applications[key] {
		return store.ErrAlreadyApplied
	}
	if err := s.Save(rec); err != nil {
		return err
	}
	s.applications[key] = true
	return nil
}

func (s *memVoucherStore) mustGet(code string) *models.VoucherRecord {
	for _, r := range s.records {
		if r.ShopifyCode == code {
			return r
		}
	}
	panic("no voucher for " + code)
}

// Gateway fakes.

type fakeShopify struct {
	pages       [][]gateway.ShopifyCustomer
	failAtPage  int // 1-based; 0 disables
	listCalls   int
	createdGift []string
	giftCardErr error
	nextGiftID  int
	disabled    []string
	disableErr  error
}

func (f *fakeShopify) ListCustomers(_ context.Context, pageToken string) ([]gateway.ShopifyCustomer, string, error) {
	f.listCalls++
	page := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "page-%d", &page)
	}
	if f.failAtPage > 0 && page+1 >= f.failAtPage {
		return nil, "", fmt.Errorf("shopify API error (status 500)")
	}
	if page >= len(f.pages) {
		return nil, "", nil
	}
	next := ""
	if page+1 < len(f.pages) {
		next = fmt.Sprintf("page-%d", page+1)
	}
	return f.pages[page], next, nil
}

func (f *fakeShopify) CreateGiftCard(_ context.Context, code string, value float64, note string) (string, error) {
	if f.giftCardErr != nil {
		return "", f.giftCardErr
	}
	f.nextGiftID++
	f.createdGift = append(f.createdGift, code)
	return fmt.Sprintf("gc-%d", f.nextGiftID), nil
}

func (f *fakeShopify) DisableGiftCard(_ context.Context, id string) error {
	if f.disableErr != nil {
		return f.disableErr
	}
	f.disabled = append(f.disabled, id)
	return nil
}

type fakeProHandel struct {
	vouchers      []gateway.POSVoucher
	vouchersErr   error
	redemptions   []gateway.POSRedemption
	redemptionErr error
	lastSince     time.Time

	createdCustomers  []gateway.POSCustomer
	createCustomerErr error
}

func (f *fakeProHandel) ListVouchersChangedSince(_ context.Context, since time.Time) ([]gateway.POSVoucher, error) {
	f.lastSince = since
	if f.vouchersErr != nil {
		return nil, f.vouchersErr
	}
	return f.vouchers, nil
}

func (f *fakeProHandel) ListRedemptionsChangedSince(_ context.Context, since time.Time) ([]gateway.POSRedemption, error) {
	if f.redemptionErr != nil {
		return nil, f.redemptionErr
	}
	return f.redemptions, nil
}

func (f *fakeProHandel) CreateCustomer(_ context.Context, cust gateway.POSCustomer) (string, error) {
	if f.createCustomerErr != nil {
		return "", f.createCustomerErr
	}
	f.createdCustomers = append(f.createdCustomers, cust)
	return fmt.Sprintf("ph-%d", len(f.createdCustomers)), nil
}
