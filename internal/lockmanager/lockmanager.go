package lockmanager

import (
	"sync"
	"time"

	"github.com/nkkko/pushreg/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	modeRead  = "read"
	modeWrite = "write"
)

// ownerLock is a reference-counted RW mutex for one owner
type ownerLock struct {
	mu   sync.RWMutex
	refs int
}

// LockManager hands out per-owner read/write locks.
//
// Entries exist only while some caller holds or waits on them, so the table
// never grows with the number of owners ever seen.
type LockManager struct {
	mu      sync.Mutex
	locks   map[string]*ownerLock
	logger  zerolog.Logger
	metrics *metrics.LockManagerMetrics
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks:   make(map[string]*ownerLock),
		logger:  log.With().Str("component", "lockmanager").Logger(),
		metrics: metrics.GetLockManagerMetrics(),
	}
}

// acquireEntry returns the entry for owner with its refcount incremented
func (m *LockManager) acquireEntry(owner string) *ownerLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[owner]
	if !exists {
		entry = &ownerLock{}
		m.locks[owner] = entry
		m.metrics.ActiveOwners.Inc()
	}
	entry.refs++
	return entry
}

// releaseEntry drops one reference and removes the entry when unused
func (m *LockManager) releaseEntry(owner string, entry *ownerLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(m.locks, owner)
		m.metrics.ActiveOwners.Dec()
	}
}

// Lock takes the exclusive lock for owner. The returned function releases it
// and must be called exactly once.
func (m *LockManager) Lock(owner string) func() {
	entry := m.acquireEntry(owner)

	start := time.Now()
	if !entry.mu.TryLock() {
		m.metrics.LockContention.WithLabelValues(modeWrite).Inc()
		m.logger.Debug().Str("owner", owner).Msg("Waiting for owner write lock")
		entry.mu.Lock()
	}
	m.observe(modeWrite, start)

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			m.releaseEntry(owner, entry)
		})
	}
}

// RLock takes the shared lock for owner. The returned function releases it
// and must be called exactly once.
func (m *LockManager) RLock(owner string) func() {
	entry := m.acquireEntry(owner)

	start := time.Now()
	if !entry.mu.TryRLock() {
		m.metrics.LockContention.WithLabelValues(modeRead).Inc()
		entry.mu.RLock()
	}
	m.observe(modeRead, start)

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.RUnlock()
			m.releaseEntry(owner, entry)
		})
	}
}

func (m *LockManager) observe(mode string, start time.Time) {
	m.metrics.LockAcquisitions.WithLabelValues(mode).Inc()
	m.metrics.LockWaitDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

// ActiveOwners returns the number of owners currently holding or waiting on a lock
func (m *LockManager) ActiveOwners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
