package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Owner identifies the account a subscription is registered under
type Owner string

// SubscriptionID identifies one subscription within an owner's scope
type SubscriptionID string

// NewSubscriptionID returns a fresh random subscription ID
func NewSubscriptionID() SubscriptionID {
	return SubscriptionID(uuid.New().String())
}

// EventType is a category of change a subscription can ask to be notified about
type EventType string

const (
	EventTypeMailbox          EventType = "Mailbox"
	EventTypeEmail            EventType = "Email"
	EventTypeEmailDelivery    EventType = "EmailDelivery"
	EventTypeThread           EventType = "Thread"
	EventTypeIdentity         EventType = "Identity"
	EventTypeEmailSubmission  EventType = "EmailSubmission"
	EventTypeVacationResponse EventType = "VacationResponse"
	EventTypeContactBook      EventType = "ContactBook"
	EventTypeCalendarEvent    EventType = "CalendarEvent"
)

var knownEventTypes = map[EventType]struct{}{
	EventTypeMailbox:          {},
	EventTypeEmail:            {},
	EventTypeEmailDelivery:    {},
	EventTypeThread:           {},
	EventTypeIdentity:         {},
	EventTypeEmailSubmission:  {},
	EventTypeVacationResponse: {},
	EventTypeContactBook:      {},
	EventTypeCalendarEvent:    {},
}

// ParseEventType converts a name into an EventType, rejecting unknown names
func ParseEventType(name string) (EventType, error) {
	t := EventType(name)
	if !t.Valid() {
		return "", fmt.Errorf("unknown event type: %q", name)
	}
	return t, nil
}

// Valid reports whether t belongs to the known set of event types
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// EventTypeSet is an unordered set of event types
type EventTypeSet map[EventType]struct{}

// NewEventTypeSet builds a set from the given types
func NewEventTypeSet(types ...EventType) EventTypeSet {
	set := make(EventTypeSet, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// ParseEventTypeSet builds a set from names, failing on the first unknown name
func ParseEventTypeSet(names []string) (EventTypeSet, error) {
	set := make(EventTypeSet, len(names))
	for _, name := range names {
		t, err := ParseEventType(name)
		if err != nil {
			return nil, err
		}
		set[t] = struct{}{}
	}
	return set, nil
}

// Contains reports whether t is in the set
func (s EventTypeSet) Contains(t EventType) bool {
	_, ok := s[t]
	return ok
}

// Slice returns the members sorted by name
func (s EventTypeSet) Slice() []EventType {
	out := make([]EventType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the member names sorted
func (s EventTypeSet) Strings() []string {
	types := s.Slice()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// Clone returns an independent copy of the set
func (s EventTypeSet) Clone() EventTypeSet {
	if s == nil {
		return nil
	}
	out := make(EventTypeSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array of names
func (s EventTypeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of names, rejecting unknown ones
func (s *EventTypeSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseEventTypeSet(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// Subscription is a push endpoint registered under an owner
type Subscription struct {
	ID             SubscriptionID `json:"id"`
	DeviceClientID string         `json:"device_client_id"`
	DeviceToken    string         `json:"device_token"`
	Types          EventTypeSet   `json:"types"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

// IsLive reports whether the subscription has not yet expired at now
func (s Subscription) IsLive(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// Clone returns a copy that shares no mutable state with s
func (s Subscription) Clone() Subscription {
	s.Types = s.Types.Clone()
	return s
}

// WithExpiresAt returns a copy with a new expiry
func (s Subscription) WithExpiresAt(expiresAt time.Time) Subscription {
	out := s.Clone()
	out.ExpiresAt = expiresAt
	return out
}

// WithTypes returns a copy with a new set of event types
func (s Subscription) WithTypes(types EventTypeSet) Subscription {
	out := s
	out.Types = types.Clone()
	return out
}

// CreationRequest carries the caller-supplied fields of a new subscription
type CreationRequest struct {
	DeviceClientID string
	DeviceToken    string
	Types          EventTypeSet

	// Expires is the requested expiry; nil asks for the default TTL
	Expires *time.Time
}
