package repository

import (
	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"gorm.io/gorm"
)

// PromoCodeRepository defines the interface for promo code pool operations
type PromoCodeRepository interface {
	Create(entry *models.PromoCodeMaster) error
	GetByID(id uint) (*models.PromoCodeMaster, error)
	GetByCode(code string) (*models.PromoCodeMaster, error)
	Update(entry *models.PromoCodeMaster) error
	Count() (int64, error)
	CountAvailable() (int64, error)
	ListAllCodes() ([]string, error)
	ListAvailable(offset, limit int) ([]models.PromoCodeMaster, error)

	// PickAvailableRandom selects one available entry uniformly at random
	// within the given transaction.
	PickAvailableRandom(tx *gorm.DB) (*models.PromoCodeMaster, error)
	// ClaimForStore binds an entry to a store and flips it unavailable. It
	// returns the number of rows actually updated: zero means another
	// transaction claimed the entry first.
	ClaimForStore(tx *gorm.DB, id uint, storeID uint) (int64, error)
	// InsertBatch bulk-inserts one chunk of new pool entries. Chunking and
	// failure tolerance across chunks are the caller's concern.
	InsertBatch(entries []models.PromoCodeMaster) error
	// CountByCodes counts how many of the given code strings exist in the
	// pool, used to reconcile after partially failed batch inserts.
	CountByCodes(codes []string) (int64, error)
}

// DiscountRepository defines the interface for discount operations
type DiscountRepository interface {
	Create(tx *gorm.DB, discount *models.Discount) error
	GetByID(id uint) (*models.Discount, error)
	GetByCode(code string) (*models.Discount, error)
	Update(discount *models.Discount) error
	// Delete soft-deletes a discount by flipping its status.
	Delete(id uint) error
	ListByStore(storeID uint) ([]models.Discount, error)
	// ListLivePromoCodes returns the code strings of live root promo-code
	// discounts for exclusion-set construction.
	ListLivePromoCodes() ([]string, error)
	IncrementUsage(id uint) error
}

// StoreRepository defines the interface for store operations
type StoreRepository interface {
	Create(store *models.Store) error
	GetByID(id uint) (*models.Store, error)
	GetBySlug(slug string) (*models.Store, error)
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	PromoCode PromoCodeRepository
	Discount  DiscountRepository
	Store     StoreRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		PromoCode: NewPromoCodeRepository(db),
		Discount:  NewDiscountRepository(db),
		Store:     NewStoreRepository(db),
	}
}
