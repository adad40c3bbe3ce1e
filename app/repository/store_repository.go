package repository

import (
	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"gorm.io/gorm"
)

// storeRepository implements the StoreRepository interface
type storeRepository struct {
	db *gorm.DB
}

// NewStoreRepository creates a new store repository instance
func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepository{db: db}
}

// Create inserts a new store
func (r *storeRepository) Create(store *models.Store) error {
	return r.db.Create(store).Error
}

// GetByID retrieves a store by its ID
func (r *storeRepository) GetByID(id uint) (*models.Store, error) {
	return models.FindStoreByID(r.db, id)
}

// GetBySlug retrieves a store by its slug
func (r *storeRepository) GetBySlug(slug string) (*models.Store, error) {
	return models.FindStoreBySlug(r.db, slug)
}

// Count returns the number of stores
func (r *storeRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Store{}).Count(&count).Error
	return count, err
}
