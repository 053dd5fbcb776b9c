// Package proto defines the JSON wire types of the pushreg HTTP API.
package proto

import (
	"encoding/json"
	"time"
)

// Subscription is a registered push endpoint as seen on the wire
type Subscription struct {
	ID             string    `json:"id"`
	DeviceClientID string    `json:"device_client_id"`
	DeviceToken    string    `json:"device_token"`
	Types          []string  `json:"types"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// CreateSubscriptionRequest registers a new push endpoint.
// A nil Expires asks for the server's default lifetime.
type CreateSubscriptionRequest struct {
	DeviceClientID string     `json:"device_client_id"`
	DeviceToken    string     `json:"device_token"`
	Types          []string   `json:"types"`
	Expires        *time.Time `json:"expires,omitempty"`
}

// UpdateSubscriptionRequest changes the mutable fields of a subscription.
// Nil fields are left untouched.
type UpdateSubscriptionRequest struct {
	Expires *time.Time `json:"expires,omitempty"`
	Types   *[]string  `json:"types,omitempty"`
}

// UpdateSubscriptionResponse reports the effective values after an update
type UpdateSubscriptionResponse struct {
	ID        string     `json:"id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Types     []string   `json:"types,omitempty"`
}

// RevokeResponse acknowledges a revocation
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// DeleteOwnerResponse lists the cleanup steps run for a deleted owner
type DeleteOwnerResponse struct {
	Owner string   `json:"owner"`
	Steps []string `json:"steps"`
}

// Error is the error body of a failed request
type Error struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Envelope wraps every API response
type Envelope struct {
	Success   bool            `json:"success"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *Error          `json:"error,omitempty"`
}
