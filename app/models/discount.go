package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Discount type constants
const (
	DiscountTypePoint     = "point"
	DiscountTypeCoupon    = "coupon"
	DiscountTypePromoCode = "promo_code"
)

// Discount status constants
const (
	DiscountStatusDraft     = "draft"
	DiscountStatusPublished = "published"
	DiscountStatusDeleted   = "deleted"
)

// Discount is the benefit a store hands to its customers. For promo-code
// discounts the Code field is copied from an allocated PromoCodeMaster inside
// the same transaction that claims the pool entry.
type Discount struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Code             string     `gorm:"type:varchar(64);not null;index" json:"code"`
	Type             string     `gorm:"type:varchar(20);not null;default:'coupon';index" json:"type"`
	Status           string     `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Title            string     `gorm:"type:varchar(255)" json:"title"`
	Amount           int        `gorm:"not null;default:0" json:"amount"`
	IsDisabled       bool       `gorm:"not null;default:false" json:"is_disabled"`
	UsageLimit       *int       `json:"usage_limit"` // nil = unlimited
	UsageCount       int        `gorm:"not null;default:0" json:"usage_count"`
	StartsAt         time.Time  `gorm:"type:datetime;not null" json:"starts_at"`
	EndsAt           *time.Time `gorm:"type:datetime" json:"ends_at"`
	StoreID          *uint      `gorm:"index" json:"store_id"`
	OwnerStoreID     *uint      `gorm:"index" json:"owner_store_id"`
	ParentDiscountID *uint      `gorm:"index" json:"parent_discount_id"` // nil = root discount
	Metadata         JSON       `gorm:"type:json" json:"metadata"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name used by GORM
func (Discount) TableName() string {
	return "discounts"
}

// BeforeCreate validates the discount before insertion
func (d *Discount) BeforeCreate(tx *gorm.DB) error {
	if d.Code == "" {
		return errors.New("discount code cannot be empty")
	}
	switch d.Type {
	case DiscountTypePoint, DiscountTypeCoupon, DiscountTypePromoCode:
	default:
		return errors.New("unknown discount type: " + d.Type)
	}
	if d.StartsAt.IsZero() {
		d.StartsAt = time.Now()
	}
	return nil
}

// IsLive reports whether the discount counts against the code space, i.e. it
// has not been soft-deleted
func (d *Discount) IsLive() bool {
	return d.Status != DiscountStatusDeleted
}

// IsUsable reports whether the discount can be redeemed at the given time
func (d *Discount) IsUsable(at time.Time) bool {
	if d.Status != DiscountStatusPublished || d.IsDisabled {
		return false
	}
	if at.Before(d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && at.After(*d.EndsAt) {
		return false
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return false
	}
	return true
}

// IncrementUsage bumps the redemption counter atomically
func (d *Discount) IncrementUsage(db *gorm.DB) error {
	return db.Model(d).UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1)).Error
}

// --- Static Functions ---

// FindDiscountByID finds a discount by ID
func FindDiscountByID(db *gorm.DB, id uint) (*Discount, error) {
	var discount Discount
	result := db.Where("id = ?", id).First(&discount)
	return &discount, result.Error
}

// FindDiscountByCode finds a discount by its code string
func FindDiscountByCode(db *gorm.DB, code string) (*Discount, error) {
	var discount Discount
	result := db.Where("code = ?", code).First(&discount)
	return &discount, result.Error
}

// FindDiscountsByStore returns all discounts owned by a store
func FindDiscountsByStore(db *gorm.DB, storeID uint) ([]Discount, error) {
	var discounts []Discount
	result := db.Where("store_id = ?", storeID).Order("created_at DESC").Find(&discounts)
	return discounts, result.Error
}

// LivePromoCodeStrings returns the codes of every live root promo-code
// discount. Together with the pool itself this forms the generator's
// exclusion set.
func LivePromoCodeStrings(db *gorm.DB) ([]string, error) {
	var codes []string
	result := db.Model(&Discount{}).
		Where("type = ? AND status <> ? AND parent_discount_id IS NULL", DiscountTypePromoCode, DiscountStatusDeleted).
		Pluck("code", &codes)
	return codes, result.Error
}
