package deletion

import (
	"context"

	"github.com/nkkko/pushreg/internal/domain"
)

// PushSubscriptionStepName names the subscription cleanup step
const PushSubscriptionStepName = "PushSubscriptionUserDeletionTaskStep"

// PushSubscriptionStep revokes every push subscription of the deleted owner
type PushSubscriptionStep struct {
	registry domain.Registry
	priority int
}

// NewPushSubscriptionStep creates the subscription cleanup step
func NewPushSubscriptionStep(registry domain.Registry, priority int) *PushSubscriptionStep {
	return &PushSubscriptionStep{registry: registry, priority: priority}
}

func (s *PushSubscriptionStep) Name() string { return PushSubscriptionStepName }

func (s *PushSubscriptionStep) Priority() int { return s.priority }

func (s *PushSubscriptionStep) Run(ctx context.Context, owner domain.Owner) error {
	return s.registry.RevokeAll(ctx, owner)
}
