package promocode

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"github.com/MinoruSoga/tsunaguma-sub006/app/repository"
	metrics "github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/metrics/counter"
)

// Issuer drives the allocation cycle for a newly registered store: claim a
// pool code, create the backing discount in the same transaction, then let
// the replenisher re-evaluate the pool depth.
type Issuer struct {
	db          *gorm.DB
	allocator   *Allocator
	discounts   repository.DiscountRepository
	replenisher *Replenisher
}

// NewIssuer wires the issuer over its collaborators
func NewIssuer(db *gorm.DB, allocator *Allocator, discounts repository.DiscountRepository, replenisher *Replenisher) *Issuer {
	return &Issuer{
		db:          db,
		allocator:   allocator,
		discounts:   discounts,
		replenisher: replenisher,
	}
}

// IssueToStore allocates one promo code to the store and creates the discount
// that carries it. The claim and the discount insert commit or roll back
// together; there is no state where a code is bound but no discount exists.
func (i *Issuer) IssueToStore(storeID uint) (*models.Discount, error) {
	var discount *models.Discount

	err := i.db.Transaction(func(tx *gorm.DB) error {
		entry, err := i.allocator.Allocate(tx, storeID)
		if err != nil {
			return err
		}

		d := &models.Discount{
			Code:         entry.Code,
			Type:         models.DiscountTypePromoCode,
			Status:       models.DiscountStatusDraft,
			StartsAt:     entry.StartsAt,
			EndsAt:       entry.EndsAt,
			StoreID:      &storeID,
			OwnerStoreID: &storeID,
		}
		if err := i.discounts.Create(tx, d); err != nil {
			return fmt.Errorf("failed to create promo code discount: %w", err)
		}

		discount = d
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoCodeAvailable) {
			if cerr := metrics.AddExhaustion(); cerr != nil {
				log.Debugf("[PromoCode] Exhaustion counter update failed: %v", cerr)
			}
			// Exhaustion still warrants a refill attempt.
			i.checkPool()
		}
		return nil, err
	}

	if cerr := metrics.AddAllocation(); cerr != nil {
		log.Debugf("[PromoCode] Allocation counter update failed: %v", cerr)
	}
	i.checkPool()

	return discount, nil
}

// IssueAsync runs IssueToStore detached from the caller. Store registration
// must never block on or fail from promo code issuance; failures end up in
// the log only. The returned channel closes once the attempt has finished,
// for callers that need to keep the process alive long enough.
func (i *Issuer) IssueAsync(storeID uint) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := i.IssueToStore(storeID); err != nil {
			if errors.Is(err, ErrNoCodeAvailable) {
				log.Warnf("[PromoCode] No code available for store %d, skipping issuance", storeID)
				return
			}
			log.Errorf("[PromoCode] Issuance for store %d failed: %v", storeID, err)
		}
	}()
	return done
}

// checkPool asks the replenisher to re-evaluate the pool depth. Replenishment
// trouble never reaches the allocation caller.
func (i *Issuer) checkPool() {
	if i.replenisher == nil {
		return
	}
	if err := i.replenisher.CheckAndSchedule(); err != nil {
		log.Errorf("[PromoCode] Replenishment check failed: %v", err)
	}
}
