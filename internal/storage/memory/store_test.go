package memory

import (
	"testing"

	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) domain.SubscriptionStore {
		store := NewStore()
		t.Cleanup(func() { store.Close() })
		return store
	})
}
