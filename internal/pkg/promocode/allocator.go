package promocode

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"github.com/MinoruSoga/tsunaguma-sub006/app/repository"
)

// Allocator hands out exactly one available pool code per call. Selection is
// randomized to keep concurrent callers off the same row; the unique index on
// (code, store_id) is the final arbiter when they collide anyway.
//
// The selected row is not locked between pick and claim. A lost race shows up
// as zero affected rows or a duplicate-key failure at commit, both of which
// are reported as ErrNoCodeAvailable so the caller's transaction unwinds
// cleanly.
type Allocator struct {
	promoCodes repository.PromoCodeRepository
}

// NewAllocator creates an allocator over the given pool repository
func NewAllocator(promoCodes repository.PromoCodeRepository) *Allocator {
	return &Allocator{promoCodes: promoCodes}
}

// Allocate picks one available code at random and binds it to the store
// within tx. If the surrounding transaction rolls back, so does the binding.
func (a *Allocator) Allocate(tx *gorm.DB, storeID uint) (*models.PromoCodeMaster, error) {
	entry, err := a.promoCodes.PickAvailableRandom(tx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCodeAvailable
		}
		return nil, fmt.Errorf("failed to pick promo code: %w", err)
	}

	rows, err := a.promoCodes.ClaimForStore(tx, entry.ID, storeID)
	if err != nil {
		if isDuplicateKeyError(err) {
			// Concurrent binder reached the unique index first.
			return nil, ErrNoCodeAvailable
		}
		return nil, fmt.Errorf("failed to claim promo code %s: %w", entry.Code, err)
	}
	if rows == 0 {
		// The row was claimed between our read and our update.
		return nil, ErrNoCodeAvailable
	}

	entry.StoreID = &storeID
	entry.IsAvailable = false
	return entry, nil
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// MySQL error 1062 when the driver does not translate it
	return strings.Contains(err.Error(), "Duplicate entry")
}
