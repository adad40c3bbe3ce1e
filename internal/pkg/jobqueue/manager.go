package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/env"
	metrics "github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/metrics/counter"
	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/statistics"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	counterFlushTicker *time.Ticker
	statisticsTicker   *time.Ticker
	poolCheckTicker    *time.Ticker
	poolCheck          func() error
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if raw := env.GetEnv("JOB_QUEUE_WORKERS", ""); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				workerCount = n
			}
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// SetPoolCheck registers the periodic pool depth check. The check runs on a
// timer as a safety net for deficits that no allocation ever reported, for
// example after codes expired. Must be called before Start.
func (m *Manager) SetPoolCheck(check func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poolCheck = check
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	// Counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker(m.stopCh)

	// Pool statistics refresh
	m.statisticsTicker = time.NewTicker(5 * time.Minute)
	m.wg.Add(1)
	go m.statisticsWorker(m.stopCh)

	if m.poolCheck != nil {
		m.poolCheckTicker = time.NewTicker(15 * time.Minute)
		m.wg.Add(1)
		go m.poolCheckWorker(m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}
	if m.statisticsTicker != nil {
		m.statisticsTicker.Stop()
	}
	if m.poolCheckTicker != nil {
		m.poolCheckTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// counterFlushWorker periodically flushes in-memory counters from Redis to DB
func (m *Manager) counterFlushWorker(stopCh chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// statisticsWorker periodically refreshes the cached pool statistics
func (m *Manager) statisticsWorker(stopCh chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Statistics worker stopping")
			return
		case <-m.statisticsTicker.C:
			statistics.UpdateCacheIfNeeded()
		}
	}
}

// poolCheckWorker periodically re-evaluates the pool depth
func (m *Manager) poolCheckWorker(stopCh chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Pool check worker stopping")
			return
		case <-m.poolCheckTicker.C:
			log.Debug("[JobQueue Manager] Running scheduled pool depth check")
			if err := m.poolCheck(); err != nil {
				log.Errorf("[JobQueue Manager] Pool depth check error: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
