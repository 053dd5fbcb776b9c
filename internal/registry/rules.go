package registry

import (
	"time"

	"github.com/nkkko/pushreg/internal/domain"
)

// filterLive drops entries whose expiry is at or before now
func filterLive(subs []domain.Subscription, now time.Time) []domain.Subscription {
	live := make([]domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.IsLive(now) {
			live = append(live, sub)
		}
	}
	return live
}

// isUniqueDeviceClientID reports whether no live entry of the owner holds candidate.
// Expired entries never block reuse.
func isUniqueDeviceClientID(owned []domain.Subscription, candidate string, now time.Time) bool {
	for _, sub := range owned {
		if sub.IsLive(now) && sub.DeviceClientID == candidate {
			return false
		}
	}
	return true
}

// isUniqueDeviceToken reports whether no live entry of the owner holds candidate
func isUniqueDeviceToken(owned []domain.Subscription, candidate string, now time.Time) bool {
	for _, sub := range owned {
		if sub.IsLive(now) && sub.DeviceToken == candidate {
			return false
		}
	}
	return true
}

// supersededBy returns the expired entries that share a device client id or
// token with a new subscription. A save that reuses identifiers replaces
// them, so no stored entry ever shares an identifier with another.
func supersededBy(owned []domain.Subscription, clientID, token string, now time.Time) []domain.SubscriptionID {
	var ids []domain.SubscriptionID
	for _, sub := range owned {
		if sub.IsLive(now) {
			continue
		}
		if sub.DeviceClientID == clientID || sub.DeviceToken == token {
			ids = append(ids, sub.ID)
		}
	}
	return ids
}
