package repository

import (
	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"gorm.io/gorm"
)

// discountRepository implements the DiscountRepository interface
type discountRepository struct {
	db *gorm.DB
}

// NewDiscountRepository creates a new discount repository instance
func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepository{db: db}
}

// Create inserts a discount within the given transaction. Passing the
// allocator's transaction here is what ties discount creation to the code
// claim atomically.
func (r *discountRepository) Create(tx *gorm.DB, discount *models.Discount) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(discount).Error
}

// GetByID retrieves a discount by its ID
func (r *discountRepository) GetByID(id uint) (*models.Discount, error) {
	return models.FindDiscountByID(r.db, id)
}

// GetByCode retrieves a discount by its code string
func (r *discountRepository) GetByCode(code string) (*models.Discount, error) {
	return models.FindDiscountByCode(r.db, code)
}

// Update saves changes to an existing discount
func (r *discountRepository) Update(discount *models.Discount) error {
	return r.db.Save(discount).Error
}

// Delete soft-deletes a discount by flipping its status
func (r *discountRepository) Delete(id uint) error {
	return r.db.Model(&models.Discount{}).
		Where("id = ?", id).
		Update("status", models.DiscountStatusDeleted).Error
}

// ListByStore returns all discounts owned by a store
func (r *discountRepository) ListByStore(storeID uint) ([]models.Discount, error) {
	return models.FindDiscountsByStore(r.db, storeID)
}

// ListLivePromoCodes returns codes of live root promo-code discounts
func (r *discountRepository) ListLivePromoCodes() ([]string, error) {
	return models.LivePromoCodeStrings(r.db)
}

// IncrementUsage bumps the redemption counter atomically
func (r *discountRepository) IncrementUsage(id uint) error {
	return r.db.Model(&models.Discount{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1)).Error
}
