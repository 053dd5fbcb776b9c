package memory

import (
	"context"
	"sync"

	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/metrics"
)

// Ensure Store implements domain.SubscriptionStore
var _ domain.SubscriptionStore = (*Store)(nil)

const backend = "memory"

// Store is an in-memory subscription table keyed by owner, then ID.
// Values are copied on the way in and out.
type Store struct {
	mu      sync.RWMutex
	table   map[domain.Owner]map[domain.SubscriptionID]domain.Subscription
	metrics *metrics.Metrics
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		table:   make(map[domain.Owner]map[domain.SubscriptionID]domain.Subscription),
		metrics: metrics.GetMetrics(),
	}
}

// Put inserts or overwrites the subscription at (owner, sub.ID)
func (s *Store) Put(ctx context.Context, owner domain.Owner, sub domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.table[owner]
	if !exists {
		row = make(map[domain.SubscriptionID]domain.Subscription)
		s.table[owner] = row
	}
	row[sub.ID] = sub.Clone()

	s.count("put")
	return nil
}

// Get returns the subscription at (owner, id)
func (s *Store) Get(ctx context.Context, owner domain.Owner, id domain.SubscriptionID) (domain.Subscription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.count("get")
	sub, exists := s.table[owner][id]
	if !exists {
		return domain.Subscription{}, false, nil
	}
	return sub.Clone(), true, nil
}

// GetAllForOwner returns every stored subscription of the owner
func (s *Store) GetAllForOwner(ctx context.Context, owner domain.Owner) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.count("get_all")
	row := s.table[owner]
	out := make([]domain.Subscription, 0, len(row))
	for _, sub := range row {
		out = append(out, sub.Clone())
	}
	return out, nil
}

// Remove deletes (owner, id)
func (s *Store) Remove(ctx context.Context, owner domain.Owner, id domain.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count("remove")
	row, exists := s.table[owner]
	if !exists {
		return nil
	}
	delete(row, id)
	if len(row) == 0 {
		delete(s.table, owner)
	}
	return nil
}

// RemoveAllForOwner deletes every subscription of the owner
func (s *Store) RemoveAllForOwner(ctx context.Context, owner domain.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count("remove_all")
	delete(s.table, owner)
	return nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close() error {
	return nil
}

func (s *Store) count(operation string) {
	s.metrics.StorageOperations.WithLabelValues(backend, operation, "true").Inc()
}
