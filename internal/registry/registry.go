// Package registry implements the push subscription registry: creation with
// validation, expiry evaluation, live-only uniqueness per owner, updates,
// revocation and lazily filtered reads.
//
// Every mutation runs its read-validate-write sequence under the owner's
// exclusive lock; reads take the owner's shared lock.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/nkkko/pushreg/internal/clock"
	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/expiry"
	"github.com/nkkko/pushreg/internal/lockmanager"
	"github.com/nkkko/pushreg/internal/metrics"
	"github.com/nkkko/pushreg/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Ensure Registry implements domain.Registry
var _ domain.Registry = (*Registry)(nil)

// Config contains registry configuration
type Config struct {
	Expiry expiry.Config
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Expiry: expiry.DefaultConfig(),
	}
}

// Registry is the subscription registry facade
type Registry struct {
	store   domain.SubscriptionStore
	clock   domain.Clock
	policy  *expiry.Policy
	locks   *lockmanager.LockManager
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a registry over store. A nil clock reads the wall clock.
func New(config Config, store domain.SubscriptionStore, clk domain.Clock) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("registry requires a subscription store")
	}

	policy, err := expiry.NewPolicy(config.Expiry)
	if err != nil {
		return nil, err
	}

	if clk == nil {
		clk = clock.System{}
	}

	return &Registry{
		store:   store,
		clock:   clk,
		policy:  policy,
		locks:   lockmanager.NewLockManager(),
		logger:  log.With().Str("component", "registry").Logger(),
		metrics: metrics.GetMetrics(),
	}, nil
}

// Save creates a new subscription for owner.
//
// Checks run against the pre-mutation state in a fixed order: expiry, device
// client id, then device token. The first failure is returned. Expired
// entries holding either identifier are removed before the new entry is stored.
func (r *Registry) Save(ctx context.Context, owner domain.Owner, req domain.CreationRequest) (sub domain.Subscription, err error) {
	ctx, span := r.startSpan(ctx, "registry.Save", owner)
	defer span.End()
	defer r.observe(ctx, "save", time.Now(), &err)

	unlock := r.locks.Lock(string(owner))
	defer unlock()

	now := r.clock.Now()
	if r.policy.Reject(req.Expires, now) {
		return domain.Subscription{}, &ExpireTimeInvalidError{
			Requested: *req.Expires,
			Reason:    "expires must be greater than now",
		}
	}

	owned, err := r.store.GetAllForOwner(ctx, owner)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	if !isUniqueDeviceClientID(owned, req.DeviceClientID, now) {
		return domain.Subscription{}, &DeviceClientIDInvalidError{
			Value:  req.DeviceClientID,
			Reason: "deviceClientId must be unique",
		}
	}
	if !isUniqueDeviceToken(owned, req.DeviceToken, now) {
		return domain.Subscription{}, &TokenInvalidError{
			Value:  req.DeviceToken,
			Reason: "deviceToken must be unique",
		}
	}

	// expired holders of these identifiers are overwritten by this save
	for _, id := range supersededBy(owned, req.DeviceClientID, req.DeviceToken, now) {
		if err := r.store.Remove(ctx, owner, id); err != nil {
			return domain.Subscription{}, fmt.Errorf("failed to remove superseded subscription: %w", err)
		}
		r.logger.Debug().Str("owner", string(owner)).Str("id", string(id)).Msg("Expired subscription superseded")
	}

	expiresAt := r.evaluate(req.Expires, now)

	types := req.Types.Clone()
	if types == nil {
		types = domain.NewEventTypeSet()
	}

	sub = domain.Subscription{
		ID:             domain.NewSubscriptionID(),
		DeviceClientID: req.DeviceClientID,
		DeviceToken:    req.DeviceToken,
		Types:          types,
		ExpiresAt:      expiresAt,
	}
	if err := r.store.Put(ctx, owner, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to store subscription: %w", err)
	}

	r.metrics.SubscriptionsCreated.Inc()
	r.logger.Debug().
		Str("owner", string(owner)).
		Str("id", string(sub.ID)).
		Time("expires_at", expiresAt).
		Msg("Subscription created")

	return sub.Clone(), nil
}

// UpdateExpireTime sets a new expiry on an existing subscription and returns
// the effective value. Expired entries that no save has superseded are still
// addressable and come back to life.
func (r *Registry) UpdateExpireTime(ctx context.Context, owner domain.Owner, id domain.SubscriptionID, expires time.Time) (expiresAt time.Time, err error) {
	ctx, span := r.startSpan(ctx, "registry.UpdateExpireTime", owner, attribute.String("subscription.id", string(id)))
	defer span.End()
	defer r.observe(ctx, "update_expire_time", time.Now(), &err)

	unlock := r.locks.Lock(string(owner))
	defer unlock()

	now := r.clock.Now()
	if r.policy.Reject(&expires, now) {
		return time.Time{}, &ExpireTimeInvalidError{
			Requested: expires,
			Reason:    "expires must be greater than now",
		}
	}

	sub, found, err := r.store.Get(ctx, owner, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	if !found {
		return time.Time{}, &NotFoundError{ID: id}
	}

	expiresAt = r.evaluate(&expires, now)
	if err := r.store.Put(ctx, owner, sub.WithExpiresAt(expiresAt)); err != nil {
		return time.Time{}, fmt.Errorf("failed to store subscription: %w", err)
	}

	r.logger.Debug().
		Str("owner", string(owner)).
		Str("id", string(id)).
		Time("expires_at", expiresAt).
		Msg("Subscription expiry updated")

	return expiresAt, nil
}

// UpdateTypes replaces the event types of an existing subscription
func (r *Registry) UpdateTypes(ctx context.Context, owner domain.Owner, id domain.SubscriptionID, types domain.EventTypeSet) (err error) {
	ctx, span := r.startSpan(ctx, "registry.UpdateTypes", owner, attribute.String("subscription.id", string(id)))
	defer span.End()
	defer r.observe(ctx, "update_types", time.Now(), &err)

	unlock := r.locks.Lock(string(owner))
	defer unlock()

	sub, found, err := r.store.Get(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if !found {
		return &NotFoundError{ID: id}
	}

	if types == nil {
		types = domain.NewEventTypeSet()
	}
	if err := r.store.Put(ctx, owner, sub.WithTypes(types)); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}

	r.logger.Debug().
		Str("owner", string(owner)).
		Str("id", string(id)).
		Strs("types", types.Strings()).
		Msg("Subscription types updated")

	return nil
}

// Revoke removes one subscription. Revoking a missing id succeeds.
func (r *Registry) Revoke(ctx context.Context, owner domain.Owner, id domain.SubscriptionID) (err error) {
	ctx, span := r.startSpan(ctx, "registry.Revoke", owner, attribute.String("subscription.id", string(id)))
	defer span.End()
	defer r.observe(ctx, "revoke", time.Now(), &err)

	unlock := r.locks.Lock(string(owner))
	defer unlock()

	if err := r.store.Remove(ctx, owner, id); err != nil {
		return fmt.Errorf("failed to remove subscription: %w", err)
	}

	r.metrics.SubscriptionsRevoked.Inc()
	r.logger.Debug().Str("owner", string(owner)).Str("id", string(id)).Msg("Subscription revoked")
	return nil
}

// RevokeAll removes every subscription of owner
func (r *Registry) RevokeAll(ctx context.Context, owner domain.Owner) (err error) {
	ctx, span := r.startSpan(ctx, "registry.RevokeAll", owner)
	defer span.End()
	defer r.observe(ctx, "revoke_all", time.Now(), &err)

	unlock := r.locks.Lock(string(owner))
	defer unlock()

	if err := r.store.RemoveAllForOwner(ctx, owner); err != nil {
		return fmt.Errorf("failed to remove subscriptions: %w", err)
	}

	r.logger.Info().Str("owner", string(owner)).Msg("All subscriptions revoked")
	return nil
}

// Get returns the live subscriptions of owner whose id is in ids
func (r *Registry) Get(ctx context.Context, owner domain.Owner, ids []domain.SubscriptionID) (subs []domain.Subscription, err error) {
	ctx, span := r.startSpan(ctx, "registry.Get", owner, attribute.Int("ids.count", len(ids)))
	defer span.End()
	defer r.observe(ctx, "get", time.Now(), &err)

	unlock := r.locks.RLock(string(owner))
	defer unlock()

	now := r.clock.Now()
	seen := make(map[domain.SubscriptionID]struct{}, len(ids))
	subs = make([]domain.Subscription, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		sub, found, err := r.store.Get(ctx, owner, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load subscription: %w", err)
		}
		if found && sub.IsLive(now) {
			subs = append(subs, sub)
		}
	}

	return subs, nil
}

// List returns every live subscription of owner
func (r *Registry) List(ctx context.Context, owner domain.Owner) (subs []domain.Subscription, err error) {
	ctx, span := r.startSpan(ctx, "registry.List", owner)
	defer span.End()
	defer r.observe(ctx, "list", time.Now(), &err)

	unlock := r.locks.RLock(string(owner))
	defer unlock()

	owned, err := r.store.GetAllForOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	return filterLive(owned, r.clock.Now()), nil
}

// evaluate applies the expiry policy and counts clamped requests
func (r *Registry) evaluate(requested *time.Time, now time.Time) time.Time {
	expiresAt := r.policy.Evaluate(requested, now)
	if requested != nil && expiresAt.Before(*requested) {
		r.metrics.ExpiryClamped.Inc()
	}
	return expiresAt
}

func (r *Registry) startSpan(ctx context.Context, name string, owner domain.Owner, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("owner", string(owner)))
	return telemetry.StartSpan(ctx, name, trace.WithAttributes(attrs...))
}

// observe records the outcome of an operation
func (r *Registry) observe(ctx context.Context, operation string, start time.Time, errp *error) {
	r.metrics.RegistryOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	result := "success"
	if err := *errp; err != nil {
		if reason := rejectionReason(err); reason != "" {
			result = "rejected"
			r.metrics.ValidationRejections.WithLabelValues(reason).Inc()
			telemetry.AddSpanEvent(ctx, "rejected", attribute.String("reason", reason))
		} else {
			result = "error"
			telemetry.MarkSpanError(ctx, err)
			r.logger.Error().Err(err).Str("operation", operation).Msg("Registry operation failed")
		}
	}
	r.metrics.RegistryOperations.WithLabelValues(operation, result).Inc()
}
