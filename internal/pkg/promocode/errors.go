package promocode

import "errors"

var (
	// ErrNoCodeAvailable signals pool exhaustion at allocation time. Callers
	// must stop, not retry: the pool will only refill through replenishment.
	ErrNoCodeAvailable = errors.New("no promo code available")

	// ErrPoolCapacityExceeded rejects a replenishment run that would push the
	// total pool size past the configured hard cap.
	ErrPoolCapacityExceeded = errors.New("promo code pool capacity exceeded")
)
