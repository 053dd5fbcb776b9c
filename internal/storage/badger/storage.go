package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ensure Storage implements domain.SubscriptionStore
var _ domain.SubscriptionStore = (*Storage)(nil)

const (
	// Prefix for subscription records: sub:{owner}\x00{id}
	prefixSubscriptions = "sub:"
	keySeparator        = byte(0)

	backend = "badger"
)

// Config contains storage configuration
type Config struct {
	// Base directory for data files
	DataDir string

	// Cache settings
	CacheEnabled    bool
	CacheSize       int
	CacheExpiration time.Duration

	// How often to run value log GC and refresh size metrics
	MaintenanceInterval time.Duration
}

// DefaultConfig returns a default configuration for Badger-based storage
func DefaultConfig() Config {
	return Config{
		DataDir:             "./data",
		CacheEnabled:        true,
		CacheSize:           10000,
		CacheExpiration:     30 * time.Second,
		MaintenanceInterval: 10 * time.Minute,
	}
}

// Storage persists subscriptions in Badger
type Storage struct {
	config  Config
	db      *badger.DB
	cache   *Cache
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewStorage opens (or creates) a Badger-backed subscription store
func NewStorage(config Config) (*Storage, error) {
	logger := log.With().Str("component", "storage-badger").Logger()

	if config.DataDir == "" {
		config.DataDir = DefaultConfig().DataDir
	}
	if config.MaintenanceInterval <= 0 {
		config.MaintenanceInterval = DefaultConfig().MaintenanceInterval
	}

	dbPath := filepath.Join(config.DataDir, "badger")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}

	options := badger.DefaultOptions(dbPath)
	options = options.WithLoggingLevel(badger.WARNING) // Reduce logging noise

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger: %w", err)
	}

	s := &Storage{
		config:  config,
		db:      db,
		logger:  logger,
		metrics: metrics.GetMetrics(),
	}

	if config.CacheEnabled {
		if config.CacheSize <= 0 {
			config.CacheSize = DefaultConfig().CacheSize
		}
		if config.CacheExpiration <= 0 {
			config.CacheExpiration = DefaultConfig().CacheExpiration
		}

		cache, err := NewCache(config.CacheSize, config.CacheExpiration)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		s.cache = cache
		s.logger.Info().
			Int("cache_size", config.CacheSize).
			Dur("cache_expiration", config.CacheExpiration).
			Msg("Cache initialized")
	}

	s.logger.Info().Str("path", dbPath).Msg("Badger storage opened")
	return s, nil
}

// ownerPrefix returns the key prefix shared by all of an owner's records
func ownerPrefix(owner domain.Owner) []byte {
	key := make([]byte, 0, len(prefixSubscriptions)+len(owner)+1)
	key = append(key, prefixSubscriptions...)
	key = append(key, owner...)
	return append(key, keySeparator)
}

// subscriptionKey returns the record key for (owner, id)
func subscriptionKey(owner domain.Owner, id domain.SubscriptionID) []byte {
	return append(ownerPrefix(owner), id...)
}

func validateOwner(owner domain.Owner) error {
	if strings.IndexByte(string(owner), keySeparator) >= 0 {
		return fmt.Errorf("owner must not contain NUL bytes")
	}
	return nil
}

// Start runs periodic maintenance until ctx is cancelled
func (s *Storage) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.MaintenanceInterval)
	defer ticker.Stop()

	s.collectMetrics()
	for {
		select {
		case <-ticker.C:
			s.runValueLogGC()
			s.collectMetrics()
		case <-ctx.Done():
			return nil
		}
	}
}

// runValueLogGC reclaims value log space until Badger reports nothing to do
func (s *Storage) runValueLogGC() {
	for {
		err := s.db.RunValueLogGC(0.5)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
			s.logger.Warn().Err(err).Msg("Value log GC failed")
		}
		return
	}
}

// collectMetrics reports the database size
func (s *Storage) collectMetrics() {
	lsm, vlog := s.db.Size()
	s.metrics.DBSize.Set(float64(lsm + vlog))
}

// Put inserts or overwrites the subscription at (owner, sub.ID)
func (s *Storage) Put(ctx context.Context, owner domain.Owner, sub domain.Subscription) error {
	timer := prometheus.NewTimer(s.metrics.StorageOperationDuration.WithLabelValues(backend, "put"))
	defer timer.ObserveDuration()

	if err := validateOwner(owner); err != nil {
		s.count("put", false)
		return err
	}

	data, err := json.Marshal(sub)
	if err != nil {
		s.count("put", false)
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(subscriptionKey(owner, sub.ID), data)
	})
	s.invalidate(owner)
	if err != nil {
		s.count("put", false)
		return fmt.Errorf("failed to store subscription: %w", err)
	}

	s.count("put", true)
	return nil
}

// Get returns the subscription at (owner, id)
func (s *Storage) Get(ctx context.Context, owner domain.Owner, id domain.SubscriptionID) (domain.Subscription, bool, error) {
	timer := prometheus.NewTimer(s.metrics.StorageOperationDuration.WithLabelValues(backend, "get"))
	defer timer.ObserveDuration()

	if s.cache != nil {
		if subs, found := s.cache.GetOwner(owner); found {
			for _, sub := range subs {
				if sub.ID == id {
					return sub, true, nil
				}
			}
			return domain.Subscription{}, false, nil
		}
	}

	var sub domain.Subscription
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(subscriptionKey(owner, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sub)
		})
	})
	if err != nil {
		s.count("get", false)
		return domain.Subscription{}, false, fmt.Errorf("failed to retrieve subscription: %w", err)
	}

	s.count("get", true)
	return sub, found, nil
}

// GetAllForOwner returns every stored subscription of the owner
func (s *Storage) GetAllForOwner(ctx context.Context, owner domain.Owner) ([]domain.Subscription, error) {
	timer := prometheus.NewTimer(s.metrics.StorageOperationDuration.WithLabelValues(backend, "get_all"))
	defer timer.ObserveDuration()

	var generation uint64
	if s.cache != nil {
		if subs, found := s.cache.GetOwner(owner); found {
			return subs, nil
		}
		generation = s.cache.Generation()
	}

	subs := make([]domain.Subscription, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := ownerPrefix(owner)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sub domain.Subscription
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sub)
			})
			if err != nil {
				return fmt.Errorf("failed to decode %q: %w", it.Item().Key(), err)
			}
			subs = append(subs, sub)
		}
		return nil
	})
	if err != nil {
		s.count("get_all", false)
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	if s.cache != nil {
		s.cache.SetOwner(owner, subs, generation)
	}

	s.count("get_all", true)
	return subs, nil
}

// Remove deletes (owner, id); a missing key is not an error
func (s *Storage) Remove(ctx context.Context, owner domain.Owner, id domain.SubscriptionID) error {
	timer := prometheus.NewTimer(s.metrics.StorageOperationDuration.WithLabelValues(backend, "remove"))
	defer timer.ObserveDuration()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(subscriptionKey(owner, id))
	})
	s.invalidate(owner)
	if err != nil {
		s.count("remove", false)
		return fmt.Errorf("failed to remove subscription: %w", err)
	}

	s.count("remove", true)
	return nil
}

// RemoveAllForOwner deletes every subscription of the owner
func (s *Storage) RemoveAllForOwner(ctx context.Context, owner domain.Owner) error {
	timer := prometheus.NewTimer(s.metrics.StorageOperationDuration.WithLabelValues(backend, "remove_all"))
	defer timer.ObserveDuration()

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := ownerPrefix(owner)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		s.count("remove_all", false)
		return fmt.Errorf("failed to scan subscriptions: %w", err)
	}

	if len(keys) > 0 {
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()

		for _, key := range keys {
			if err := wb.Delete(key); err != nil {
				s.invalidate(owner)
				s.count("remove_all", false)
				return fmt.Errorf("failed to queue delete: %w", err)
			}
		}
		if err := wb.Flush(); err != nil {
			s.invalidate(owner)
			s.count("remove_all", false)
			return fmt.Errorf("failed to remove subscriptions: %w", err)
		}
	}
	s.invalidate(owner)

	s.logger.Debug().Str("owner", string(owner)).Int("removed", len(keys)).Msg("Removed all subscriptions for owner")
	s.count("remove_all", true)
	return nil
}

// Close closes the Badger database
func (s *Storage) Close() error {
	if s.cache != nil {
		s.cache.Clear()
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close Badger: %w", err)
	}
	return nil
}

func (s *Storage) invalidate(owner domain.Owner) {
	if s.cache != nil {
		s.cache.InvalidateOwner(owner)
	}
}

func (s *Storage) count(operation string, success bool) {
	s.metrics.StorageOperations.WithLabelValues(backend, operation, fmt.Sprint(success)).Inc()
}
