package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// PromoCodeMaster is one entry of the promotional code pool. Codes are
// generated in bulk ahead of demand, kept available until a store claims one,
// and never physically deleted.
//
// Code is globally unique; the composite index on (code, store_id) guards the
// claim path under races: two transactions that pick the same row can both
// pass the read, but only one survives the commit.
type PromoCodeMaster struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Code        string     `gorm:"type:varchar(32);not null;uniqueIndex;uniqueIndex:idx_promo_code_store,priority:1" json:"code"`
	StoreID     *uint      `gorm:"index;uniqueIndex:idx_promo_code_store,priority:2" json:"store_id"`
	IsAvailable bool       `gorm:"not null;default:true;index" json:"is_available"`
	StartsAt    time.Time  `gorm:"type:datetime;not null" json:"starts_at"`
	EndsAt      *time.Time `gorm:"type:datetime" json:"ends_at"` // nil = open-ended
	Metadata    JSON       `gorm:"type:json" json:"metadata"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name used by GORM
func (PromoCodeMaster) TableName() string {
	return "promo_code_masters"
}

// BeforeCreate validates the pool entry before insertion
func (p *PromoCodeMaster) BeforeCreate(tx *gorm.DB) error {
	if p.Code == "" {
		return errors.New("promo code cannot be empty")
	}
	if p.StoreID != nil && p.IsAvailable {
		return errors.New("a bound promo code cannot be available")
	}
	if p.StartsAt.IsZero() {
		p.StartsAt = time.Now()
	}
	return nil
}

// IsAssigned reports whether the code is currently bound to a store
func (p *PromoCodeMaster) IsAssigned() bool {
	return p.StoreID != nil
}

// IsWithinWindow reports whether the code's validity window covers the given time
func (p *PromoCodeMaster) IsWithinWindow(at time.Time) bool {
	if at.Before(p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && at.After(*p.EndsAt) {
		return false
	}
	return true
}

// --- Static Functions ---

// FindPromoCodeMasterByID finds a pool entry by ID
func FindPromoCodeMasterByID(db *gorm.DB, id uint) (*PromoCodeMaster, error) {
	var entry PromoCodeMaster
	result := db.Where("id = ?", id).First(&entry)
	return &entry, result.Error
}

// FindPromoCodeMasterByCode finds a pool entry by its code string
func FindPromoCodeMasterByCode(db *gorm.DB, code string) (*PromoCodeMaster, error) {
	var entry PromoCodeMaster
	result := db.Where("code = ?", code).First(&entry)
	return &entry, result.Error
}

// FindAvailablePromoCodeAtRandom picks one available pool entry uniformly at
// random. Randomized selection keeps concurrent allocators off the same row
// most of the time; the unique index catches the rest.
func FindAvailablePromoCodeAtRandom(db *gorm.DB) (*PromoCodeMaster, error) {
	var entry PromoCodeMaster
	result := db.Where("is_available = ?", true).Order("RAND()").First(&entry)
	return &entry, result.Error
}

// CountAvailablePromoCodeMasters returns the current pool depth
func CountAvailablePromoCodeMasters(db *gorm.DB) (int64, error) {
	var count int64
	result := db.Model(&PromoCodeMaster{}).Where("is_available = ?", true).Count(&count)
	return count, result.Error
}

// CountPromoCodeMasters returns the total pool size, assigned entries included
func CountPromoCodeMasters(db *gorm.DB) (int64, error) {
	var count int64
	result := db.Model(&PromoCodeMaster{}).Count(&count)
	return count, result.Error
}

// AllPromoCodeStrings returns every code string in the pool, used to seed the
// generator's exclusion set
func AllPromoCodeStrings(db *gorm.DB) ([]string, error) {
	var codes []string
	result := db.Model(&PromoCodeMaster{}).Pluck("code", &codes)
	return codes, result.Error
}
