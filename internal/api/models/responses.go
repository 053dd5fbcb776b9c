package models

import (
	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/pkg/proto"
)

// SubscriptionFromDomain converts a registry subscription to its wire form
func SubscriptionFromDomain(sub domain.Subscription) proto.Subscription {
	return proto.Subscription{
		ID:             string(sub.ID),
		DeviceClientID: sub.DeviceClientID,
		DeviceToken:    sub.DeviceToken,
		Types:          sub.Types.Strings(),
		ExpiresAt:      sub.ExpiresAt,
	}
}

// SubscriptionsFromDomain converts a slice of registry subscriptions
func SubscriptionsFromDomain(subs []domain.Subscription) []proto.Subscription {
	out := make([]proto.Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, SubscriptionFromDomain(sub))
	}
	return out
}
