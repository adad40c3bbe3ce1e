package statistics

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/cache"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/database"
)

// setupStatistics points the shared database handle at a sqlmock connection
// and the cache client at an in-process Redis.
func setupStatistics(t *testing.T) (sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	database.DB = db

	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	ResetCacheUpdateTimer()
	return mock, mr
}

func countRows(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func TestUpdateStatisticsCacheWritesAllKeys(t *testing.T) {
	mock, mr := setupStatistics(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `promo_code_masters`").
		WillReturnRows(countRows(10))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `promo_code_masters` WHERE is_available = .+").
		WillReturnRows(countRows(4))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `discounts` WHERE type = .+ AND created_at BETWEEN .+").
		WillReturnRows(countRows(2))

	require.NoError(t, UpdateStatisticsCache())

	total, err := mr.Get(CacheKeyPoolTotal)
	require.NoError(t, err)
	assert.Equal(t, "10", total)

	available, err := mr.Get(CacheKeyPoolAvailable)
	require.NoError(t, err)
	assert.Equal(t, "4", available)

	dailyKey := fmt.Sprintf(CacheKeyIssuedDaily, time.Now().Format("2006-01-02"))
	issued, err := mr.Get(dailyKey)
	require.NoError(t, err)
	assert.Equal(t, "2", issued)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTotalCodesPrefersCache(t *testing.T) {
	mock, mr := setupStatistics(t)

	require.NoError(t, mr.Set(CacheKeyPoolTotal, "42"))

	// No database expectations; a cache hit never reaches the DB.
	assert.Equal(t, 42, GetTotalCodes())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTotalCodesFallsBackToDatabase(t *testing.T) {
	mock, mr := setupStatistics(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `promo_code_masters`").
		WillReturnRows(countRows(7))

	assert.Equal(t, 7, GetTotalCodes())

	// The miss repopulates the cache on the way out.
	cached, err := mr.Get(CacheKeyPoolTotal)
	require.NoError(t, err)
	assert.Equal(t, "7", cached)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAvailableCodesFallsBackToDatabase(t *testing.T) {
	mock, mr := setupStatistics(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `promo_code_masters` WHERE is_available = .+").
		WillReturnRows(countRows(3))

	assert.Equal(t, 3, GetAvailableCodes())

	cached, err := mr.Get(CacheKeyPoolAvailable)
	require.NoError(t, err)
	assert.Equal(t, "3", cached)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTodayIssuedPrefersCache(t *testing.T) {
	mock, mr := setupStatistics(t)

	dailyKey := fmt.Sprintf(CacheKeyIssuedDaily, time.Now().Format("2006-01-02"))
	require.NoError(t, mr.Set(dailyKey, "5"))

	assert.Equal(t, 5, GetTodayIssued())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCacheIfNeededHonorsInterval(t *testing.T) {
	mock, _ := setupStatistics(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `promo_code_masters`").
		WillReturnRows(countRows(10))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `promo_code_masters` WHERE is_available = .+").
		WillReturnRows(countRows(4))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `discounts` WHERE type = .+ AND created_at BETWEEN .+").
		WillReturnRows(countRows(0))

	require.True(t, ShouldUpdateCache())
	UpdateCacheIfNeeded()
	assert.False(t, ShouldUpdateCache())

	// A fresh cache makes the second call a no-op; no further queries run.
	UpdateCacheIfNeeded()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPoolStatisticsMergesCounters(t *testing.T) {
	mock, mr := setupStatistics(t)

	require.NoError(t, mr.Set(CacheKeyPoolTotal, "10"))
	require.NoError(t, mr.Set(CacheKeyPoolAvailable, "4"))
	dailyKey := fmt.Sprintf(CacheKeyIssuedDaily, time.Now().Format("2006-01-02"))
	require.NoError(t, mr.Set(dailyKey, "2"))
	require.NoError(t, mr.Set("promo:counters:allocated_total", "6"))
	require.NoError(t, mr.Set("promo:counters:exhausted_total", "1"))

	// Mark the cache as fresh so GetPoolStatistics reads instead of re-counting.
	cacheUpdateMutex.Lock()
	lastCacheUpdate = time.Now()
	cacheUpdateMutex.Unlock()

	stats := GetPoolStatistics()
	assert.Equal(t, 10, stats.TotalCodes)
	assert.Equal(t, 4, stats.AvailableCodes)
	assert.Equal(t, 6, stats.AssignedCodes)
	assert.Equal(t, 2, stats.TodayIssued)
	assert.Equal(t, int64(6), stats.AllocatedTotal)
	assert.Equal(t, int64(1), stats.ExhaustedTotal)

	assert.NoError(t, mock.ExpectationsWereMet())
}
