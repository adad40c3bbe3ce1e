package repository

import (
	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"gorm.io/gorm"
)

// promoCodeRepository implements the PromoCodeRepository interface
type promoCodeRepository struct {
	db *gorm.DB
}

// NewPromoCodeRepository creates a new promo code repository instance
func NewPromoCodeRepository(db *gorm.DB) PromoCodeRepository {
	return &promoCodeRepository{db: db}
}

// Create inserts a single pool entry
func (r *promoCodeRepository) Create(entry *models.PromoCodeMaster) error {
	return r.db.Create(entry).Error
}

// GetByID retrieves a pool entry by its ID
func (r *promoCodeRepository) GetByID(id uint) (*models.PromoCodeMaster, error) {
	return models.FindPromoCodeMasterByID(r.db, id)
}

// GetByCode retrieves a pool entry by its code string
func (r *promoCodeRepository) GetByCode(code string) (*models.PromoCodeMaster, error) {
	return models.FindPromoCodeMasterByCode(r.db, code)
}

// Update saves changes to an existing pool entry. This is the administrative
// correction path; normal allocation goes through ClaimForStore.
func (r *promoCodeRepository) Update(entry *models.PromoCodeMaster) error {
	return r.db.Save(entry).Error
}

// Count returns the total pool size
func (r *promoCodeRepository) Count() (int64, error) {
	return models.CountPromoCodeMasters(r.db)
}

// CountAvailable returns the current pool depth
func (r *promoCodeRepository) CountAvailable() (int64, error) {
	return models.CountAvailablePromoCodeMasters(r.db)
}

// ListAllCodes returns every code string in the pool
func (r *promoCodeRepository) ListAllCodes() ([]string, error) {
	return models.AllPromoCodeStrings(r.db)
}

// ListAvailable returns a page of available pool entries
func (r *promoCodeRepository) ListAvailable(offset, limit int) ([]models.PromoCodeMaster, error) {
	var entries []models.PromoCodeMaster
	err := r.db.Where("is_available = ?", true).
		Order("id ASC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, err
}

// PickAvailableRandom selects one available entry at random within tx
func (r *promoCodeRepository) PickAvailableRandom(tx *gorm.DB) (*models.PromoCodeMaster, error) {
	return models.FindAvailablePromoCodeAtRandom(tx)
}

// ClaimForStore binds an entry to a store and marks it unavailable. The
// is_available guard in the WHERE clause makes the update a no-op when a
// concurrent transaction already claimed the row.
func (r *promoCodeRepository) ClaimForStore(tx *gorm.DB, id uint, storeID uint) (int64, error) {
	result := tx.Model(&models.PromoCodeMaster{}).
		Where("id = ? AND is_available = ?", id, true).
		Updates(map[string]interface{}{
			"store_id":     storeID,
			"is_available": false,
		})
	return result.RowsAffected, result.Error
}

// InsertBatch bulk-inserts one chunk of pool entries
func (r *promoCodeRepository) InsertBatch(entries []models.PromoCodeMaster) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.Create(&entries).Error
}

// CountByCodes counts how many of the given codes made it into storage
func (r *promoCodeRepository) CountByCodes(codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.PromoCodeMaster{}).Where("code IN ?", codes).Count(&count).Error
	return count, err
}
