package models

import (
	"time"

	"gorm.io/gorm"
)

// Store status constants
const (
	StoreStatusPending  = "pending"
	StoreStatusApproved = "approved"
	StoreStatusClosed   = "closed"
)

// Store is a marketplace tenant. Registration of a new store is what drives
// promo code allocation.
type Store struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name used by GORM
func (Store) TableName() string {
	return "stores"
}

// --- Static Functions ---

// FindStoreByID finds a store by ID
func FindStoreByID(db *gorm.DB, id uint) (*Store, error) {
	var store Store
	result := db.Where("id = ?", id).First(&store)
	return &store, result.Error
}

// FindStoreBySlug finds a store by its slug
func FindStoreBySlug(db *gorm.DB, slug string) (*Store, error) {
	var store Store
	result := db.Where("slug = ?", slug).First(&store)
	return &store, result.Error
}
