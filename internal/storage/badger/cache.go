package badger

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/metrics"
)

// Cache holds recent per-owner snapshots of stored subscriptions.
//
// Fills are guarded by a generation counter: every invalidation bumps it, and a
// snapshot read from the database before an invalidation is never cached.
type Cache struct {
	owners     *lru.TwoQueueCache
	mutex      sync.Mutex
	generation uint64
	expiration time.Duration
	metrics    *metrics.Metrics
}

// cacheItem represents an owner snapshot with an expiration time
type cacheItem struct {
	subs       []domain.Subscription
	expiration time.Time
}

// NewCache creates a new cache holding up to capacity owners
func NewCache(capacity int, expiration time.Duration) (*Cache, error) {
	owners, err := lru.New2Q(capacity)
	if err != nil {
		return nil, err
	}

	return &Cache{
		owners:     owners,
		expiration: expiration,
		metrics:    metrics.GetMetrics(),
	}, nil
}

// Generation returns the current invalidation generation
func (c *Cache) Generation() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.generation
}

// GetOwner returns a copy of the cached snapshot for owner
func (c *Cache) GetOwner(owner domain.Owner) ([]domain.Subscription, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	value, found := c.owners.Get(owner)
	if !found {
		c.metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}

	item := value.(cacheItem)
	if time.Now().After(item.expiration) {
		c.owners.Remove(owner)
		c.metrics.CacheRequests.WithLabelValues("expired").Inc()
		return nil, false
	}

	c.metrics.CacheRequests.WithLabelValues("hit").Inc()
	return cloneAll(item.subs), true
}

// SetOwner caches a snapshot for owner unless an invalidation happened since generation
func (c *Cache) SetOwner(owner domain.Owner, subs []domain.Subscription, generation uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if generation != c.generation {
		return
	}

	c.owners.Add(owner, cacheItem{
		subs:       cloneAll(subs),
		expiration: time.Now().Add(c.expiration),
	})
}

// InvalidateOwner drops the snapshot for owner
func (c *Cache) InvalidateOwner(owner domain.Owner) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.generation++
	c.owners.Remove(owner)
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.generation++
	c.owners.Purge()
}

func cloneAll(subs []domain.Subscription) []domain.Subscription {
	out := make([]domain.Subscription, len(subs))
	for i, sub := range subs {
		out[i] = sub.Clone()
	}
	return out
}
