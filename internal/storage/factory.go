package storage

import (
	"fmt"

	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/storage/badger"
	"github.com/nkkko/pushreg/internal/storage/memory"
)

// CreateStorage creates a subscription store based on the configuration
func CreateStorage(config Config) (domain.SubscriptionStore, error) {
	switch config.Type {
	case MemoryStorage, "":
		return memory.NewStore(), nil

	case BadgerStorage:
		store, err := badger.NewStorage(badger.Config{
			DataDir:             config.DataDir,
			CacheEnabled:        config.CacheEnabled,
			CacheSize:           config.CacheSize,
			CacheExpiration:     config.CacheExpiration,
			MaintenanceInterval: config.MaintenanceInterval,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %q", config.Type)
	}
}
