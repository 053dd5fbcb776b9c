// Package storagetest holds the behavioural suite every SubscriptionStore
// backend must pass.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nkkko/pushreg/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) domain.SubscriptionStore

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func subscription(id, clientID, token string, expiresIn time.Duration) domain.Subscription {
	return domain.Subscription{
		ID:             domain.SubscriptionID(id),
		DeviceClientID: clientID,
		DeviceToken:    token,
		Types:          domain.NewEventTypeSet(domain.EventTypeMailbox),
		ExpiresAt:      baseTime.Add(expiresIn),
	}
}

func ids(subs []domain.Subscription) []string {
	out := make([]string, len(subs))
	for i, sub := range subs {
		out[i] = string(sub.ID)
	}
	sort.Strings(out)
	return out
}

// Run executes the store contract against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		store := newStore(t)
		sub := subscription("s1", "c1", "t1", time.Hour)
		sub.Types = domain.NewEventTypeSet(domain.EventTypeEmail, domain.EventTypeThread)

		require.NoError(t, store.Put(ctx, "alice", sub))

		got, found, err := store.Get(ctx, "alice", "s1")
		require.NoError(t, err)
		require.True(t, found, "Stored subscription should be found")
		assert.Equal(t, sub.DeviceClientID, got.DeviceClientID)
		assert.Equal(t, sub.DeviceToken, got.DeviceToken)
		assert.Equal(t, sub.Types.Strings(), got.Types.Strings())
		assert.True(t, sub.ExpiresAt.Equal(got.ExpiresAt), "Expiry should round-trip")
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)

		_, found, err := store.Get(ctx, "alice", "nope")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("OwnersArePartitioned", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "alice", subscription("s1", "c1", "t1", time.Hour)))

		_, found, err := store.Get(ctx, "bob", "s1")
		require.NoError(t, err)
		assert.False(t, found, "Another owner must not see alice's entry")

		subs, err := store.GetAllForOwner(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("OwnerPrefixDoesNotLeak", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "al", subscription("s1", "c1", "t1", time.Hour)))
		require.NoError(t, store.Put(ctx, "alice", subscription("s2", "c2", "t2", time.Hour)))

		subs, err := store.GetAllForOwner(ctx, "al")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, ids(subs))
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "alice", subscription("s1", "c1", "t1", time.Hour)))
		require.NoError(t, store.Put(ctx, "alice", subscription("s1", "c1", "t1", 2*time.Hour)))

		got, found, err := store.Get(ctx, "alice", "s1")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, baseTime.Add(2*time.Hour).Equal(got.ExpiresAt))

		subs, err := store.GetAllForOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})

	t.Run("GetAllIsUnfiltered", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "alice", subscription("live", "c1", "t1", time.Hour)))
		require.NoError(t, store.Put(ctx, "alice", subscription("dead", "c2", "t2", -time.Hour)))

		subs, err := store.GetAllForOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"dead", "live"}, ids(subs), "Store reads must not apply expiry")
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "alice", subscription("s1", "c1", "t1", time.Hour)))

		got, _, err := store.Get(ctx, "alice", "s1")
		require.NoError(t, err)
		got.Types[domain.EventTypeCalendarEvent] = struct{}{}

		all, err := store.GetAllForOwner(ctx, "alice")
		require.NoError(t, err)
		all[0].Types[domain.EventTypeIdentity] = struct{}{}

		again, _, err := store.Get(ctx, "alice", "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"Mailbox"}, again.Types.Strings(), "Caller mutation must not reach the store")
	})

	t.Run("Remove", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "alice", subscription("s1", "c1", "t1", time.Hour)))
		require.NoError(t, store.Put(ctx, "alice", subscription("s2", "c2", "t2", time.Hour)))

		require.NoError(t, store.Remove(ctx, "alice", "s1"))

		subs, err := store.GetAllForOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"s2"}, ids(subs))

		// Removing again, or removing something never stored, is fine
		assert.NoError(t, store.Remove(ctx, "alice", "s1"))
		assert.NoError(t, store.Remove(ctx, "nobody", "s1"))
	})

	t.Run("RemoveAllForOwner", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "alice", subscription("s1", "c1", "t1", time.Hour)))
		require.NoError(t, store.Put(ctx, "alice", subscription("s2", "c2", "t2", -time.Hour)))
		require.NoError(t, store.Put(ctx, "bob", subscription("s3", "c3", "t3", time.Hour)))

		require.NoError(t, store.RemoveAllForOwner(ctx, "alice"))

		subs, err := store.GetAllForOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, subs)

		subs, err = store.GetAllForOwner(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"s3"}, ids(subs), "Other owners are untouched")

		assert.NoError(t, store.RemoveAllForOwner(ctx, "alice"), "Second bulk remove is a no-op")
	})

	t.Run("ReadAfterWriteThroughCache", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "alice", subscription("s1", "c1", "t1", time.Hour)))

		// Warm any read cache, then mutate and read again
		_, err := store.GetAllForOwner(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "alice", subscription("s2", "c2", "t2", time.Hour)))
		subs, err := store.GetAllForOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, ids(subs))

		require.NoError(t, store.Remove(ctx, "alice", "s1"))
		_, found, err := store.Get(ctx, "alice", "s1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		store := newStore(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := string(rune('a' + i))
				assert.NoError(t, store.Put(ctx, "alice", subscription(id, "c"+id, "t"+id, time.Hour)))
			}(i)
		}
		wg.Wait()

		subs, err := store.GetAllForOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, subs, 20)
	})
}
