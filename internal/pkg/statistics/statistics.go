package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/MinoruSoga/tsunaguma-sub006/app/models"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/cache"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/database"
	metrics "github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/metrics/counter"
)

const (
	CacheKeyPoolTotal     = "statistics:promo_codes:total"
	CacheKeyPoolAvailable = "statistics:promo_codes:available"
	CacheKeyIssuedDaily   = "statistics:discounts:issued:%s" // Format with date YYYY-MM-DD
	CacheExpiration       = 30 * time.Minute
)

// PoolStatistics holds the pool depth numbers for monitoring
type PoolStatistics struct {
	TotalCodes     int
	AvailableCodes int
	AssignedCodes  int
	TodayIssued    int
	AllocatedTotal int64
	ExhaustedTotal int64
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached numbers are older than the refresh interval
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached statistics when they are stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded call to refresh
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache re-counts the pool and caches the results
func UpdateStatisticsCache() error {
	db := database.GetDB()

	totalCodes, err := models.CountPromoCodeMasters(db)
	if err != nil {
		log.Printf("Error counting promo code pool: %v", err)
		return err
	}

	availableCodes, err := models.CountAvailablePromoCodeMasters(db)
	if err != nil {
		log.Printf("Error counting available promo codes: %v", err)
		return err
	}

	var todayIssued int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Discount{}).
		Where("type = ? AND created_at BETWEEN ? AND ?", models.DiscountTypePromoCode, todayStart, todayEnd).
		Count(&todayIssued).Error; err != nil {
		log.Printf("Error counting today's issued discounts: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyPoolTotal, strconv.FormatInt(totalCodes, 10), CacheExpiration); err != nil {
		log.Printf("Error caching pool total: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyPoolAvailable, strconv.FormatInt(availableCodes, 10), CacheExpiration); err != nil {
		log.Printf("Error caching available count: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyIssuedDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayIssued, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's issued count: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Pool: %d, Available: %d, Issued today: %d",
		totalCodes, availableCodes, todayIssued)

	return nil
}

// GetTotalCodes returns the pool size from cache or database
func GetTotalCodes() int {
	val, err := cache.Get(CacheKeyPoolTotal)
	if err != nil {
		count, dberr := models.CountPromoCodeMasters(database.GetDB())
		if dberr != nil {
			log.Printf("Error counting promo code pool: %v", dberr)
			return 0
		}

		if err := cache.Set(CacheKeyPoolTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching pool total: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetAvailableCodes returns the unassigned code count from cache or database
func GetAvailableCodes() int {
	val, err := cache.Get(CacheKeyPoolAvailable)
	if err != nil {
		count, dberr := models.CountAvailablePromoCodeMasters(database.GetDB())
		if dberr != nil {
			log.Printf("Error counting available promo codes: %v", dberr)
			return 0
		}

		if err := cache.Set(CacheKeyPoolAvailable, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching available count: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayIssued returns the number of promo code discounts created today
func GetTodayIssued() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyIssuedDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := database.GetDB().Model(&models.Discount{}).
			Where("type = ? AND created_at BETWEEN ? AND ?", models.DiscountTypePromoCode, todayStart, todayEnd).
			Count(&count).Error; err != nil {
			log.Printf("Error counting today's issued discounts: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's issued count: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetPoolStatistics returns all pool statistics as one structure
func GetPoolStatistics() PoolStatistics {
	UpdateCacheIfNeeded()

	total := GetTotalCodes()
	available := GetAvailableCodes()

	allocated, exhausted, err := metrics.GetTotals()
	if err != nil {
		log.Printf("Error reading allocation counters: %v", err)
	}

	return PoolStatistics{
		TotalCodes:     total,
		AvailableCodes: available,
		AssignedCodes:  total - available,
		TodayIssued:    GetTodayIssued(),
		AllocatedTotal: allocated,
		ExhaustedTotal: exhausted,
	}
}
