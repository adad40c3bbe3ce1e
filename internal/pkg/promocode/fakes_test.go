package promocode

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/jobqueue"
)

// fakePromoCodeRepo is an in-memory stand-in for the pool table. Uniqueness
// on code is enforced the way MySQL does for batch inserts: the whole chunk
// fails.
type fakePromoCodeRepo struct {
	mu      sync.Mutex
	entries map[uint]*models.PromoCodeMaster
	byCode  map[string]uint
	nextID  uint

	claimErr    error
	countErr    error
	insertErrAt int // 1-based InsertBatch call index that fails whole
	insertCalls int
}

func newFakePromoCodeRepo() *fakePromoCodeRepo {
	return &fakePromoCodeRepo{
		entries: make(map[uint]*models.PromoCodeMaster),
		byCode:  make(map[string]uint),
		nextID:  1,
	}
}

func (f *fakePromoCodeRepo) seed(codes ...string) {
	for _, code := range codes {
		_ = f.Create(&models.PromoCodeMaster{Code: code, IsAvailable: true})
	}
}

func (f *fakePromoCodeRepo) Create(entry *models.PromoCodeMaster) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.byCode[entry.Code]; dup {
		return fmt.Errorf("Error 1062 (23000): Duplicate entry '%s' for key 'code'", entry.Code)
	}
	clone := *entry
	clone.ID = f.nextID
	f.nextID++
	f.entries[clone.ID] = &clone
	f.byCode[clone.Code] = clone.ID
	entry.ID = clone.ID
	return nil
}

func (f *fakePromoCodeRepo) GetByID(id uint) (*models.PromoCodeMaster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *entry
	return &clone, nil
}

func (f *fakePromoCodeRepo) GetByCode(code string) (*models.PromoCodeMaster, error) {
	f.mu.Lock()
	id, ok := f.byCode[code]
	f.mu.Unlock()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f.GetByID(id)
}

func (f *fakePromoCodeRepo) Update(entry *models.PromoCodeMaster) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[entry.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	clone := *entry
	f.entries[entry.ID] = &clone
	return nil
}

func (f *fakePromoCodeRepo) Count() (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

func (f *fakePromoCodeRepo) CountAvailable() (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, entry := range f.entries {
		if entry.IsAvailable {
			count++
		}
	}
	return count, nil
}

func (f *fakePromoCodeRepo) ListAllCodes() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := make([]string, 0, len(f.entries))
	for code := range f.byCode {
		codes = append(codes, code)
	}
	return codes, nil
}

func (f *fakePromoCodeRepo) ListAvailable(offset, limit int) ([]models.PromoCodeMaster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PromoCodeMaster
	for _, entry := range f.entries {
		if entry.IsAvailable {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *fakePromoCodeRepo) PickAvailableRandom(tx *gorm.DB) (*models.PromoCodeMaster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Deterministic lowest-ID pick keeps the tests simple; randomness is a
	// property of the SQL implementation, not of this contract.
	var picked *models.PromoCodeMaster
	for _, entry := range f.entries {
		if !entry.IsAvailable {
			continue
		}
		if picked == nil || entry.ID < picked.ID {
			picked = entry
		}
	}
	if picked == nil {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *picked
	return &clone, nil
}

func (f *fakePromoCodeRepo) ClaimForStore(tx *gorm.DB, id uint, storeID uint) (int64, error) {
	if f.claimErr != nil {
		return 0, f.claimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok || !entry.IsAvailable {
		return 0, nil
	}
	sid := storeID
	entry.StoreID = &sid
	entry.IsAvailable = false
	return 1, nil
}

func (f *fakePromoCodeRepo) InsertBatch(entries []models.PromoCodeMaster) error {
	f.mu.Lock()
	f.insertCalls++
	if f.insertErrAt > 0 && f.insertCalls == f.insertErrAt {
		f.mu.Unlock()
		return errDuplicate()
	}
	for _, entry := range entries {
		if _, dup := f.byCode[entry.Code]; dup {
			f.mu.Unlock()
			return fmt.Errorf("Error 1062 (23000): Duplicate entry '%s' for key 'code'", entry.Code)
		}
	}
	f.mu.Unlock()
	for i := range entries {
		if err := f.Create(&entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePromoCodeRepo) CountByCodes(codes []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, code := range codes {
		if _, ok := f.byCode[code]; ok {
			count++
		}
	}
	return count, nil
}

// fakeDiscountRepo records created discounts in memory
type fakeDiscountRepo struct {
	mu        sync.Mutex
	discounts []*models.Discount
	liveCodes []string
	createErr error
	nextID    uint
}

func newFakeDiscountRepo() *fakeDiscountRepo {
	return &fakeDiscountRepo{nextID: 1}
}

func (f *fakeDiscountRepo) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.discounts)
}

func (f *fakeDiscountRepo) Create(tx *gorm.DB, discount *models.Discount) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	discount.ID = f.nextID
	f.nextID++
	clone := *discount
	f.discounts = append(f.discounts, &clone)
	return nil
}

func (f *fakeDiscountRepo) GetByID(id uint) (*models.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.discounts {
		if d.ID == id {
			clone := *d
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDiscountRepo) GetByCode(code string) (*models.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.discounts {
		if d.Code == code {
			clone := *d
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDiscountRepo) Update(discount *models.Discount) error { return nil }

func (f *fakeDiscountRepo) Delete(id uint) error { return nil }

func (f *fakeDiscountRepo) ListByStore(storeID uint) ([]models.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Discount
	for _, d := range f.discounts {
		if d.StoreID != nil && *d.StoreID == storeID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDiscountRepo) ListLivePromoCodes() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.liveCodes...), nil
}

func (f *fakeDiscountRepo) IncrementUsage(id uint) error { return nil }

// fakeEnqueuer records scheduled jobs instead of touching Redis
type fakeEnqueuer struct {
	mu         sync.Mutex
	jobs       []*jobqueue.Job
	enqueueErr error
}

func (f *fakeEnqueuer) EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &jobqueue.Job{
		ID:      fmt.Sprintf("job-%d", len(f.jobs)+1),
		Type:    jobType,
		Status:  jobqueue.JobStatusPending,
		Payload: payload,
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

var errBoom = errors.New("boom")

func errDuplicate() error {
	return errors.New("Error 1062 (23000): Duplicate entry '00000001-42' for key 'idx_promo_code_store'")
}
