package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LockManagerMetrics contains metrics for the owner lock table
type LockManagerMetrics struct {
	// LockAcquisitions counts owner lock acquisitions
	LockAcquisitions *prometheus.CounterVec

	// LockContention counts acquisitions that had to wait
	LockContention *prometheus.CounterVec

	// ActiveOwners tracks the number of owners with a live lock entry
	ActiveOwners prometheus.Gauge

	// LockWaitDuration tracks the time spent waiting for an owner lock
	LockWaitDuration *prometheus.HistogramVec
}

// NewLockManagerMetrics creates a new set of lock manager metrics
func NewLockManagerMetrics() *LockManagerMetrics {
	return &LockManagerMetrics{
		LockAcquisitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushreg_owner_lock_acquisitions_total",
				Help: "Total number of owner lock acquisitions",
			},
			[]string{"mode"},
		),
		LockContention: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushreg_owner_lock_contention_total",
				Help: "Total number of owner lock acquisitions that waited",
			},
			[]string{"mode"},
		),
		ActiveOwners: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pushreg_owner_locks_active",
				Help: "Number of owners currently holding or waiting on a lock",
			},
		),
		LockWaitDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pushreg_owner_lock_wait_duration_seconds",
				Help:    "Time spent waiting to acquire an owner lock",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
			},
			[]string{"mode"},
		),
	}
}

var (
	lockManagerMetrics *LockManagerMetrics
	lockMetricsOnce    sync.Once
)

// GetLockManagerMetrics returns the singleton instance of lock manager metrics
func GetLockManagerMetrics() *LockManagerMetrics {
	lockMetricsOnce.Do(func() {
		lockManagerMetrics = NewLockManagerMetrics()
	})
	return lockManagerMetrics
}
