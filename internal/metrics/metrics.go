package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// singleton instance
	instance *Metrics
	once     sync.Once
)

// Metrics holds Prometheus metrics for pushreg
type Metrics struct {
	// API metrics
	APIRequestsTotal     *prometheus.CounterVec
	APIRequestDuration   *prometheus.HistogramVec
	APIErrorsTotal       *prometheus.CounterVec
	APIActiveConnections prometheus.Gauge

	// Registry metrics
	RegistryOperations        *prometheus.CounterVec
	RegistryOperationDuration *prometheus.HistogramVec
	ValidationRejections      *prometheus.CounterVec
	SubscriptionsCreated      prometheus.Counter
	SubscriptionsRevoked      prometheus.Counter
	ExpiryClamped             prometheus.Counter

	// Storage metrics
	StorageOperations        *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	CacheRequests            *prometheus.CounterVec
	DBSize                   prometheus.Gauge

	// Deletion metrics
	DeletionStepsTotal *prometheus.CounterVec
}

// GetMetrics returns the metrics singleton
func GetMetrics() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

// newMetrics initializes and registers all metrics
func newMetrics() *Metrics {
	m := &Metrics{}

	// API metrics
	m.APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushreg_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	m.APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushreg_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // from 1ms to ~16s
		},
		[]string{"method", "path"},
	)

	m.APIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushreg_api_errors_total",
			Help: "Total number of API errors",
		},
		[]string{"method", "path", "error_type"},
	)

	m.APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushreg_api_active_connections",
			Help: "Number of in-flight API requests",
		},
	)

	// Registry metrics
	m.RegistryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushreg_registry_operations_total",
			Help: "Total number of registry operations by outcome",
		},
		[]string{"operation", "result"},
	)

	m.RegistryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushreg_registry_operation_duration_seconds",
			Help:    "Duration of registry operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // from 10us to ~330ms
		},
		[]string{"operation"},
	)

	m.ValidationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushreg_validation_rejections_total",
			Help: "Total number of requests rejected by validation rules",
		},
		[]string{"reason"},
	)

	m.SubscriptionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pushreg_subscriptions_created_total",
			Help: "Total number of subscriptions created",
		},
	)

	m.SubscriptionsRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pushreg_subscriptions_revoked_total",
			Help: "Total number of single-subscription revocations",
		},
	)

	m.ExpiryClamped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pushreg_expiry_clamped_total",
			Help: "Total number of requested expiries reduced to the maximum TTL",
		},
	)

	// Storage metrics
	m.StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushreg_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"backend", "operation", "success"},
	)

	m.StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushreg_storage_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // from 0.1ms to ~1.6s
		},
		[]string{"backend", "operation"},
	)

	m.CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushreg_cache_requests_total",
			Help: "Total number of owner cache lookups by result",
		},
		[]string{"result"},
	)

	m.DBSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushreg_db_size_bytes",
			Help: "Size of the database in bytes",
		},
	)

	// Deletion metrics
	m.DeletionStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushreg_deletion_steps_total",
			Help: "Total number of account-deletion steps run",
		},
		[]string{"step", "success"},
	)

	return m
}
