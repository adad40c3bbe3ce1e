package promocode

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"github.com/MinoruSoga/tsunaguma-sub006/app/repository"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/config"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/jobqueue"
)

const (
	// InsertChunkSize caps one bulk insert to keep transactions bounded
	InsertChunkSize = 5000
	// InsertChunkDelay throttles consecutive chunk inserts
	InsertChunkDelay = 500 * time.Millisecond
)

// Enqueuer schedules deferred jobs. Satisfied by *jobqueue.Queue.
type Enqueuer interface {
	EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Replenisher keeps the available-code count above the configured threshold
// without ever blocking the allocation path. It is also the jobqueue
// Processor for promo code generation jobs.
type Replenisher struct {
	promoCodes repository.PromoCodeRepository
	discounts  repository.DiscountRepository
	generator  *Generator
	queue      Enqueuer
	cfg        config.PromoCodeConfig

	chunkSize  int
	chunkDelay time.Duration
}

// NewReplenisher wires the replenisher over its collaborators
func NewReplenisher(
	promoCodes repository.PromoCodeRepository,
	discounts repository.DiscountRepository,
	generator *Generator,
	queue Enqueuer,
	cfg config.PromoCodeConfig,
) *Replenisher {
	return &Replenisher{
		promoCodes: promoCodes,
		discounts:  discounts,
		generator:  generator,
		queue:      queue,
		cfg:        cfg,
		chunkSize:  InsertChunkSize,
		chunkDelay: InsertChunkDelay,
	}
}

// CheckAndSchedule re-counts the pool and schedules a regeneration job when
// the available count dropped below the threshold. Scheduling is all that
// happens here; the expensive work runs on the job queue.
func (r *Replenisher) CheckAndSchedule() error {
	available, err := r.promoCodes.CountAvailable()
	if err != nil {
		return fmt.Errorf("failed to count available promo codes: %w", err)
	}

	if available >= int64(r.cfg.Threshold) {
		return nil
	}

	deficit := r.cfg.TargetTotal - int(available)
	payload := jobqueue.PromoCodeGenerationPayload{Total: deficit}

	job, err := r.queue.EnqueueJob(jobqueue.JobTypePromoCodeGeneration, payload.ToMap())
	if err != nil {
		return fmt.Errorf("failed to schedule promo code generation: %w", err)
	}

	log.Infof("[PromoCode] Pool depth %d below threshold %d, scheduled generation job %s (total=%d)",
		available, r.cfg.Threshold, job.ID, deficit)
	return nil
}

// PreProcess recomputes the deficit against the live pool and fails fast when
// regeneration would push the pool past its hard cap. A rejected job is not
// retried.
func (r *Replenisher) PreProcess(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.PromoCodeGenerationPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid generation payload: %w", err)
	}

	available, err := r.promoCodes.CountAvailable()
	if err != nil {
		return fmt.Errorf("failed to count available promo codes: %w", err)
	}
	poolTotal, err := r.promoCodes.Count()
	if err != nil {
		return fmt.Errorf("failed to count promo code pool: %w", err)
	}

	// The deficit may have shrunk (or closed) between scheduling and
	// execution; trust the live numbers over the enqueued ones.
	total := r.cfg.TargetTotal - int(available)
	if payload.Total < total {
		total = payload.Total
	}
	if total < 0 {
		total = 0
	}

	if poolTotal+int64(total) > int64(r.cfg.MaxTotal) {
		return fmt.Errorf("%w: pool holds %d, requested %d more, cap is %d",
			ErrPoolCapacityExceeded, poolTotal, total, r.cfg.MaxTotal)
	}

	job.Payload = jobqueue.PromoCodeGenerationPayload{Total: total}.ToMap()
	job.SetResult("count", total)
	return nil
}

// Process generates the requested codes, inserts them in throttled chunks and
// reconciles the actually-stored count. Chunk failures are logged and
// tolerated; the reconciliation re-queries storage instead of trusting the
// insert calls, because uniqueness violations drop rows silently.
func (r *Replenisher) Process(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.PromoCodeGenerationPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid generation payload: %w", err)
	}

	if payload.Total <= 0 {
		job.SetResult("advancement_count", 0)
		job.SetResult("error_count", 0)
		return nil
	}

	excluded, err := r.exclusionSet()
	if err != nil {
		return err
	}

	generated := r.generator.Generate(payload.Total, excluded)
	if len(generated.Codes) < payload.Total {
		log.Warnf("[PromoCode] Generation shortfall: requested %d, produced %d in %d tries",
			payload.Total, len(generated.Codes), generated.Tries)
	}

	now := time.Now()
	var insertErrors []string
	for start := 0; start < len(generated.Codes); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(generated.Codes) {
			end = len(generated.Codes)
		}

		entries := make([]models.PromoCodeMaster, 0, end-start)
		for _, code := range generated.Codes[start:end] {
			entries = append(entries, models.PromoCodeMaster{
				Code:        code,
				IsAvailable: true,
				StartsAt:    now,
			})
		}

		if err := r.promoCodes.InsertBatch(entries); err != nil {
			// A lost chunk is reconciled below, the job moves on.
			log.Errorf("[PromoCode] Chunk insert failed (%d..%d): %v", start, end, err)
			insertErrors = append(insertErrors, err.Error())
		}

		if end < len(generated.Codes) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.chunkDelay):
			}
		}
	}

	inserted, err := r.promoCodes.CountByCodes(generated.Codes)
	if err != nil {
		return fmt.Errorf("failed to reconcile inserted promo codes: %w", err)
	}

	job.SetResult("count", payload.Total)
	job.SetResult("items", generated.Codes)
	job.SetResult("advancement_count", inserted)
	job.SetResult("error_count", int64(payload.Total)-inserted)
	job.SetResult("errors", insertErrors)
	job.SetResult("stat_descriptors", []map[string]interface{}{
		{"key": "promo_code_generation_tries", "value": generated.Tries},
		{"key": "promo_code_generated", "value": len(generated.Codes)},
	})

	log.Infof("[PromoCode] Generation job %s done: requested=%d generated=%d stored=%d",
		job.ID, payload.Total, len(generated.Codes), inserted)
	return nil
}

// exclusionSet gathers every code string already in use: live root promo-code
// discounts plus the whole pool
func (r *Replenisher) exclusionSet() (map[string]struct{}, error) {
	discountCodes, err := r.discounts.ListLivePromoCodes()
	if err != nil {
		return nil, fmt.Errorf("failed to list live promo code discounts: %w", err)
	}
	poolCodes, err := r.promoCodes.ListAllCodes()
	if err != nil {
		return nil, fmt.Errorf("failed to list pool codes: %w", err)
	}

	excluded := make(map[string]struct{}, len(discountCodes)+len(poolCodes))
	for _, code := range discountCodes {
		excluded[code] = struct{}{}
	}
	for _, code := range poolCodes {
		excluded[code] = struct{}{}
	}
	return excluded, nil
}
