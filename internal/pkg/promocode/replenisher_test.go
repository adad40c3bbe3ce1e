package promocode

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/jobqueue"
)

func newTestReplenisher(repo *fakePromoCodeRepo, discounts *fakeDiscountRepo, queue *fakeEnqueuer, chars, target, max, threshold int) *Replenisher {
	cfg := testConfig(chars, target, max, threshold)
	r := NewReplenisher(repo, discounts, NewGenerator(cfg, rand.New(rand.NewSource(1))), queue, cfg)
	r.chunkDelay = time.Millisecond
	return r
}

func TestCheckAndScheduleBelowThreshold(t *testing.T) {
	repo := newFakePromoCodeRepo()
	repo.seed("00000001", "00000002") // available = 2, threshold = 3
	queue := &fakeEnqueuer{}
	r := newTestReplenisher(repo, newFakeDiscountRepo(), queue, 8, 10, 100, 3)

	require.NoError(t, r.CheckAndSchedule())

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, jobqueue.JobTypePromoCodeGeneration, queue.jobs[0].Type)

	payload, err := jobqueue.PromoCodeGenerationPayloadFromMap(queue.jobs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 8, payload.Total) // target 10 - available 2
}

func TestCheckAndScheduleAtThresholdDoesNothing(t *testing.T) {
	repo := newFakePromoCodeRepo()
	repo.seed("00000001", "00000002", "00000003") // available = threshold
	queue := &fakeEnqueuer{}
	r := newTestReplenisher(repo, newFakeDiscountRepo(), queue, 8, 10, 100, 3)

	require.NoError(t, r.CheckAndSchedule())
	assert.Empty(t, queue.jobs)
}

func TestPreProcessComputesDeficit(t *testing.T) {
	repo := newFakePromoCodeRepo()
	repo.seed("00000001")
	r := newTestReplenisher(repo, newFakeDiscountRepo(), &fakeEnqueuer{}, 8, 10, 100, 3)

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 9}.ToMap()}
	require.NoError(t, r.PreProcess(context.Background(), job))

	payload, err := jobqueue.PromoCodeGenerationPayloadFromMap(job.Payload)
	require.NoError(t, err)
	assert.Equal(t, 9, payload.Total)
	assert.Equal(t, 9, job.Result["count"])
}

func TestPreProcessShrinksStaleDeficit(t *testing.T) {
	repo := newFakePromoCodeRepo()
	// Pool refilled since the job was scheduled: 8 available against target 10.
	repo.seed("00000001", "00000002", "00000003", "00000004", "00000005", "00000006", "00000007", "00000008")
	r := newTestReplenisher(repo, newFakeDiscountRepo(), &fakeEnqueuer{}, 8, 10, 100, 3)

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 9}.ToMap()}
	require.NoError(t, r.PreProcess(context.Background(), job))

	payload, err := jobqueue.PromoCodeGenerationPayloadFromMap(job.Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.Total)
}

func TestPreProcessRejectsOverCapacity(t *testing.T) {
	repo := newFakePromoCodeRepo()
	for i := 0; i < 10; i++ {
		repo.seed(fmt.Sprintf("%08d", i))
	}
	// Pool already at the hard cap of 10.
	r := newTestReplenisher(repo, newFakeDiscountRepo(), &fakeEnqueuer{}, 8, 10, 10, 3)

	// Mark every entry assigned so the deficit is the full target.
	for id := uint(1); id <= 10; id++ {
		_, err := repo.ClaimForStore(nil, id, id)
		require.NoError(t, err)
	}

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 10}.ToMap()}
	err := r.PreProcess(context.Background(), job)
	assert.ErrorIs(t, err, ErrPoolCapacityExceeded)
	// Nothing was inserted by the rejected run.
	total, _ := repo.Count()
	assert.Equal(t, int64(10), total)
}

func TestProcessGeneratesAndStores(t *testing.T) {
	repo := newFakePromoCodeRepo()
	r := newTestReplenisher(repo, newFakeDiscountRepo(), &fakeEnqueuer{}, 8, 10, 100, 3)

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 10}.ToMap()}
	require.NoError(t, r.Process(context.Background(), job))

	stored, err := repo.CountAvailable()
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored)

	assert.Equal(t, int64(10), job.Result["advancement_count"])
	assert.Equal(t, int64(0), job.Result["error_count"])
	assert.Empty(t, job.Result["errors"])
	assert.Len(t, job.Result["items"].([]string), 10)
}

func TestProcessExcludesLiveDiscountAndPoolCodes(t *testing.T) {
	repo := newFakePromoCodeRepo()
	repo.seed("0", "1") // width-1 space, two pool codes taken
	discounts := newFakeDiscountRepo()
	discounts.liveCodes = []string{"2", "3"}
	r := newTestReplenisher(repo, discounts, &fakeEnqueuer{}, 1, 8, 10, 2)

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 6}.ToMap()}
	require.NoError(t, r.Process(context.Background(), job))

	codes := job.Result["items"].([]string)
	for _, code := range codes {
		assert.NotContains(t, []string{"0", "1", "2", "3"}, code)
	}
}

func TestProcessChunkedInsertWithPartialFailure(t *testing.T) {
	repo := newFakePromoCodeRepo()
	// The second chunk loses a uniqueness race and is dropped whole.
	repo.insertErrAt = 2
	r := newTestReplenisher(repo, newFakeDiscountRepo(), &fakeEnqueuer{}, 8, 100, 1000, 3)
	r.chunkSize = 4

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 10}.ToMap()}
	require.NoError(t, r.Process(context.Background(), job))

	// Chunks of 4, 4 and 2: the middle one is gone, the other six rows
	// are found again by the reconciliation query.
	assert.Equal(t, int64(6), job.Result["advancement_count"])
	assert.Equal(t, int64(4), job.Result["error_count"])
	assert.Len(t, job.Result["errors"].([]string), 1)

	stored, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(6), stored)
}

func TestProcessReconciliationMatchesStorage(t *testing.T) {
	repo := newFakePromoCodeRepo()
	r := newTestReplenisher(repo, newFakeDiscountRepo(), &fakeEnqueuer{}, 8, 20, 1000, 3)
	r.chunkSize = 5

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 12}.ToMap()}
	require.NoError(t, r.Process(context.Background(), job))

	codes := job.Result["items"].([]string)
	stored, err := repo.CountByCodes(codes)
	require.NoError(t, err)
	assert.Equal(t, stored, job.Result["advancement_count"])
	assert.LessOrEqual(t, stored, int64(12))
}

func TestProcessZeroTotalIsANoOp(t *testing.T) {
	repo := newFakePromoCodeRepo()
	r := newTestReplenisher(repo, newFakeDiscountRepo(), &fakeEnqueuer{}, 8, 10, 100, 3)

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 0}.ToMap()}
	require.NoError(t, r.Process(context.Background(), job))

	total, _ := repo.Count()
	assert.Equal(t, int64(0), total)
	assert.Equal(t, 0, job.Result["advancement_count"])
}

func TestProcessCancelledContextStopsBetweenChunks(t *testing.T) {
	repo := newFakePromoCodeRepo()
	r := newTestReplenisher(repo, newFakeDiscountRepo(), &fakeEnqueuer{}, 8, 100, 1000, 3)
	r.chunkSize = 2

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &jobqueue.Job{Payload: jobqueue.PromoCodeGenerationPayload{Total: 6}.ToMap()}
	err := r.Process(ctx, job)
	assert.ErrorIs(t, err, context.Canceled)

	// Only the first chunk got in before the cancellation check.
	total, _ := repo.Count()
	assert.Equal(t, int64(2), total)
}
