// Package expiry computes effective subscription expiry times.
//
// A requested expiry is either rejected (not strictly in the future), or
// accepted and silently clamped to the configured maximum lifetime. An absent
// request yields the default lifetime.
package expiry

import (
	"fmt"
	"time"
)

// Config contains the lifetime bounds applied to subscriptions
type Config struct {
	// DefaultTTL is used when the caller does not request an expiry
	DefaultTTL time.Duration

	// MaxTTL is the upper bound on any effective expiry, relative to now
	MaxTTL time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 7 * 24 * time.Hour,
		MaxTTL:     7 * 24 * time.Hour,
	}
}

// Validate checks that the lifetime bounds are usable
func (c Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("default TTL must be positive, got %s", c.DefaultTTL)
	}
	if c.MaxTTL <= 0 {
		return fmt.Errorf("max TTL must be positive, got %s", c.MaxTTL)
	}
	if c.DefaultTTL > c.MaxTTL {
		return fmt.Errorf("default TTL %s exceeds max TTL %s", c.DefaultTTL, c.MaxTTL)
	}
	return nil
}

// Policy evaluates requested expiries against the configured bounds
type Policy struct {
	defaultTTL time.Duration
	maxTTL     time.Duration
}

// NewPolicy creates a policy from a validated configuration
func NewPolicy(config Config) (*Policy, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid expiry configuration: %w", err)
	}
	return &Policy{
		defaultTTL: config.DefaultTTL,
		maxTTL:     config.MaxTTL,
	}, nil
}

// Reject reports whether requested is present and not strictly after now
func (p *Policy) Reject(requested *time.Time, now time.Time) bool {
	return requested != nil && !requested.After(now)
}

// Evaluate returns the effective expiry for a request made at now.
// Callers must gate with Reject first; Evaluate does not re-check the past.
func (p *Policy) Evaluate(requested *time.Time, now time.Time) time.Time {
	if requested == nil {
		return now.Add(p.defaultTTL)
	}
	if limit := now.Add(p.maxTTL); requested.After(limit) {
		return limit
	}
	return *requested
}

// DefaultTTL returns the configured default lifetime
func (p *Policy) DefaultTTL() time.Duration {
	return p.defaultTTL
}

// MaxTTL returns the configured maximum lifetime
func (p *Policy) MaxTTL() time.Duration {
	return p.maxTTL
}
