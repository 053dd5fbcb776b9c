package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/nkkko/pushreg/internal/domain"
)

// Sentinels matched with errors.Is
var (
	ErrExpireTimeInvalid     = errors.New("expire time invalid")
	ErrDeviceClientIDInvalid = errors.New("device client id invalid")
	ErrTokenInvalid          = errors.New("device token invalid")
	ErrNotFound              = errors.New("subscription not found")
)

// ExpireTimeInvalidError reports a requested expiry that is not strictly in the future
type ExpireTimeInvalidError struct {
	Requested time.Time
	Reason    string
}

func (e *ExpireTimeInvalidError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrExpireTimeInvalid, e.Requested.Format(time.RFC3339Nano), e.Reason)
}

func (e *ExpireTimeInvalidError) Unwrap() error { return ErrExpireTimeInvalid }

// DeviceClientIDInvalidError reports a device client id already held by a live subscription
type DeviceClientIDInvalidError struct {
	Value  string
	Reason string
}

func (e *DeviceClientIDInvalidError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrDeviceClientIDInvalid, e.Value, e.Reason)
}

func (e *DeviceClientIDInvalidError) Unwrap() error { return ErrDeviceClientIDInvalid }

// TokenInvalidError reports a device token already held by a live subscription.
// The token is a delivery address, so it is kept out of the message.
type TokenInvalidError struct {
	Value  string
	Reason string
}

func (e *TokenInvalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTokenInvalid, e.Reason)
}

func (e *TokenInvalidError) Unwrap() error { return ErrTokenInvalid }

// NotFoundError reports that no subscription exists at the addressed id
type NotFoundError struct {
	ID domain.SubscriptionID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotFound, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// rejectionReason returns the metrics label for a validation failure
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrExpireTimeInvalid):
		return "expire_time"
	case errors.Is(err, ErrDeviceClientIDInvalid):
		return "device_client_id"
	case errors.Is(err, ErrTokenInvalid):
		return "device_token"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}
