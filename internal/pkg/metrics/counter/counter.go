package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/cache"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/database"
)

const (
	discountUsageKey  = "promo:counters:discount_usage"
	allocatedTotalKey = "promo:counters:allocated_total"
	exhaustedTotalKey = "promo:counters:exhausted_total"
)

// AddDiscountUsage increments the pending redemption counter for a discount in Redis
func AddDiscountUsage(discountID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(discountID), 10)
	return cache.GetClient().HIncrBy(ctx, discountUsageKey, field, 1).Err()
}

// AddAllocation increments the running total of successful code allocations
func AddAllocation() error {
	ctx := context.Background()
	return cache.GetClient().Incr(ctx, allocatedTotalKey).Err()
}

// AddExhaustion increments the running total of allocations that found an empty pool
func AddExhaustion() error {
	ctx := context.Background()
	return cache.GetClient().Incr(ctx, exhaustedTotalKey).Err()
}

// GetTotals returns the running allocation/exhaustion totals
func GetTotals() (allocated int64, exhausted int64, err error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	allocated, err = rdb.Get(ctx, allocatedTotalKey).Int64()
	if err != nil && err.Error() != "redis: nil" {
		return 0, 0, err
	}
	exhausted, err = rdb.Get(ctx, exhaustedTotalKey).Int64()
	if err != nil && err.Error() != "redis: nil" {
		return allocated, 0, err
	}
	return allocated, exhausted, nil
}

// FlushAll flushes pending discount usage counters to the database
func FlushAll() error {
	return flushHashToTable(discountUsageKey, "discounts", "usage_count")
}

// flushHashToTable drains a Redis hash atomically and applies batched increments to the target table.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func flushHashToTable(redisKey, table, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		// Some Redis libs return redis.Nil; treat as empty
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	// Build batched UPDATE using CASE WHEN id THEN inc
	// Collect ids and increments; also sort ids for stable SQL
	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// Compose SQL
	// UPDATE discounts SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN ( ... )
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id ")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	sql := builder.String()
	db := database.GetDB()
	if err := db.Exec(sql, args...).Error; err != nil {
		return err
	}
	return nil
}
