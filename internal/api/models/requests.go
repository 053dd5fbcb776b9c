package models

import (
	"github.com/nkkko/pushreg/internal/api/errors"
	"github.com/nkkko/pushreg/internal/api/validation"
	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/pkg/proto"
)

const (
	maxDeviceClientIDLength = 255
	maxDeviceTokenLength    = 4096
)

// CreateSubscriptionRequest is the request to register a push subscription
type CreateSubscriptionRequest struct {
	proto.CreateSubscriptionRequest

	types domain.EventTypeSet
}

// Validate validates the request
func (r *CreateSubscriptionRequest) Validate() error {
	if err := validation.Required("device_client_id", r.DeviceClientID); err != nil {
		return err
	}
	if err := validation.MaxLength("device_client_id", r.DeviceClientID, maxDeviceClientIDLength); err != nil {
		return err
	}

	if err := validation.Required("device_token", r.DeviceToken); err != nil {
		return err
	}
	if err := validation.MaxLength("device_token", r.DeviceToken, maxDeviceTokenLength); err != nil {
		return err
	}

	types, err := parseTypes(r.Types)
	if err != nil {
		return err
	}
	r.types = types

	return nil
}

// ToDomain converts the validated request to a registry creation request
func (r *CreateSubscriptionRequest) ToDomain() domain.CreationRequest {
	return domain.CreationRequest{
		DeviceClientID: r.DeviceClientID,
		DeviceToken:    r.DeviceToken,
		Types:          r.types,
		Expires:        r.Expires,
	}
}

// UpdateSubscriptionRequest is the request to change a subscription's expiry and/or types
type UpdateSubscriptionRequest struct {
	proto.UpdateSubscriptionRequest

	types domain.EventTypeSet
}

// Validate validates the request
func (r *UpdateSubscriptionRequest) Validate() error {
	if r.Expires == nil && r.Types == nil {
		return errors.ValidationError("empty_update", "At least one of expires or types is required")
	}

	if r.Types != nil {
		types, err := parseTypes(*r.Types)
		if err != nil {
			return err
		}
		r.types = types
	}

	return nil
}

// DomainTypes returns the parsed types; only meaningful when Types was set
func (r *UpdateSubscriptionRequest) DomainTypes() domain.EventTypeSet {
	return r.types
}

// ParseIDs converts raw ids to subscription ids, dropping empty entries
func ParseIDs(raw []string) []domain.SubscriptionID {
	ids := make([]domain.SubscriptionID, 0, len(raw))
	for _, id := range raw {
		if id != "" {
			ids = append(ids, domain.SubscriptionID(id))
		}
	}
	return ids
}

func parseTypes(names []string) (domain.EventTypeSet, error) {
	types, err := domain.ParseEventTypeSet(names)
	if err != nil {
		return nil, errors.ValidationError("invalid_type", err.Error())
	}
	return types, nil
}
