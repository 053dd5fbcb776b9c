package domain

import (
	"context"
	"time"
)

// Clock supplies the current instant
type Clock interface {
	Now() time.Time
}

// SubscriptionStore is the owner-scoped keyed collection of subscriptions.
// Reads are unfiltered: expiry is the caller's concern.
type SubscriptionStore interface {
	// Put inserts or overwrites the subscription at (owner, sub.ID)
	Put(ctx context.Context, owner Owner, sub Subscription) error

	// Get returns the subscription at (owner, id), reporting whether it exists
	Get(ctx context.Context, owner Owner, id SubscriptionID) (Subscription, bool, error)

	// GetAllForOwner returns every stored subscription of the owner
	GetAllForOwner(ctx context.Context, owner Owner) ([]Subscription, error)

	// Remove deletes (owner, id); removing a missing entry is not an error
	Remove(ctx context.Context, owner Owner, id SubscriptionID) error

	// RemoveAllForOwner deletes every subscription of the owner
	RemoveAllForOwner(ctx context.Context, owner Owner) error

	// Close releases resources held by the store
	Close() error
}

// Registry is the public surface of the subscription registry
type Registry interface {
	Save(ctx context.Context, owner Owner, req CreationRequest) (Subscription, error)
	UpdateExpireTime(ctx context.Context, owner Owner, id SubscriptionID, expires time.Time) (time.Time, error)
	UpdateTypes(ctx context.Context, owner Owner, id SubscriptionID, types EventTypeSet) error
	Revoke(ctx context.Context, owner Owner, id SubscriptionID) error
	RevokeAll(ctx context.Context, owner Owner) error
	Get(ctx context.Context, owner Owner, ids []SubscriptionID) ([]Subscription, error)
	List(ctx context.Context, owner Owner) ([]Subscription, error)
}

// APIEngine defines the interface for API implementations
type APIEngine interface {
	// Start initializes and runs the API server
	Start(ctx context.Context) error

	// Shutdown stops the API server
	Shutdown(ctx context.Context) error
}
