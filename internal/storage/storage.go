package storage

import (
	"context"
	"time"
)

// StorageType represents the type of storage implementation to use
type StorageType string

const (
	// MemoryStorage keeps subscriptions in process memory
	MemoryStorage StorageType = "memory"

	// BadgerStorage keeps subscriptions in a Badger database
	BadgerStorage StorageType = "badger"
)

// Config contains storage configuration
type Config struct {
	// Type selects the backend
	Type StorageType

	// Base directory for data files (badger only)
	DataDir string

	// Owner snapshot cache settings (badger only)
	CacheEnabled    bool
	CacheSize       int
	CacheExpiration time.Duration

	// How often to run value log GC and refresh size metrics (badger only)
	MaintenanceInterval time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Type:                MemoryStorage,
		DataDir:             "./data",
		CacheEnabled:        true,
		CacheSize:           10000,
		CacheExpiration:     30 * time.Second,
		MaintenanceInterval: 10 * time.Minute,
	}
}

// Starter is implemented by backends that run background maintenance.
// Start blocks until ctx is cancelled.
type Starter interface {
	Start(ctx context.Context) error
}
