package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGetMetrics(t *testing.T) {
	// Get metrics instance
	metrics := GetMetrics()

	// Verify it's not nil
	assert.NotNil(t, metrics, "Metrics should not be nil")

	// Call again to test singleton behavior
	metrics2 := GetMetrics()

	// Verify both instances are the same
	assert.Same(t, metrics, metrics2, "GetMetrics should return the same instance")
}

func TestAllMetricsInitialized(t *testing.T) {
	m := GetMetrics()

	// API metrics should be initialized
	assert.NotNil(t, m.APIRequestsTotal, "APIRequestsTotal should be initialized")
	assert.NotNil(t, m.APIRequestDuration, "APIRequestDuration should be initialized")
	assert.NotNil(t, m.APIErrorsTotal, "APIErrorsTotal should be initialized")
	assert.NotNil(t, m.APIActiveConnections, "APIActiveConnections should be initialized")

	// Registry metrics should be initialized
	assert.NotNil(t, m.RegistryOperations, "RegistryOperations should be initialized")
	assert.NotNil(t, m.RegistryOperationDuration, "RegistryOperationDuration should be initialized")
	assert.NotNil(t, m.ValidationRejections, "ValidationRejections should be initialized")
	assert.NotNil(t, m.SubscriptionsCreated, "SubscriptionsCreated should be initialized")
	assert.NotNil(t, m.SubscriptionsRevoked, "SubscriptionsRevoked should be initialized")
	assert.NotNil(t, m.ExpiryClamped, "ExpiryClamped should be initialized")

	// Storage metrics should be initialized
	assert.NotNil(t, m.StorageOperations, "StorageOperations should be initialized")
	assert.NotNil(t, m.StorageOperationDuration, "StorageOperationDuration should be initialized")
	assert.NotNil(t, m.CacheRequests, "CacheRequests should be initialized")
	assert.NotNil(t, m.DBSize, "DBSize should be initialized")

	assert.NotNil(t, m.DeletionStepsTotal, "DeletionStepsTotal should be initialized")
}

func TestRegistryOperationsCounter(t *testing.T) {
	m := GetMetrics()

	before := testutil.ToFloat64(m.RegistryOperations.WithLabelValues("save", "ok"))
	m.RegistryOperations.WithLabelValues("save", "ok").Inc()
	after := testutil.ToFloat64(m.RegistryOperations.WithLabelValues("save", "ok"))

	assert.Equal(t, before+1, after)
}

func TestGetLockManagerMetrics(t *testing.T) {
	m1 := GetLockManagerMetrics()
	m2 := GetLockManagerMetrics()

	assert.Same(t, m1, m2, "GetLockManagerMetrics should return the same instance")
	assert.NotNil(t, m1.LockAcquisitions)
	assert.NotNil(t, m1.LockContention)
	assert.NotNil(t, m1.ActiveOwners)
	assert.NotNil(t, m1.LockWaitDuration)
}
