package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(Config{DefaultTTL: 24 * time.Hour, MaxTTL: 7 * 24 * time.Hour})
	require.NoError(t, err)
	return p
}

func ptr(t time.Time) *time.Time { return &t }

func TestNewPolicy_InvalidConfig(t *testing.T) {
	cases := map[string]Config{
		"zero default":           {DefaultTTL: 0, MaxTTL: time.Hour},
		"negative max":           {DefaultTTL: time.Hour, MaxTTL: -time.Hour},
		"default exceeds max":    {DefaultTTL: 2 * time.Hour, MaxTTL: time.Hour},
		"both zero":              {},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := NewPolicy(cfg)
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestEvaluate_AbsentUsesDefaultTTL(t *testing.T) {
	p := newTestPolicy(t)
	assert.Equal(t, t0.Add(24*time.Hour), p.Evaluate(nil, t0))
}

func TestEvaluate_WithinBoundsKeepsRequest(t *testing.T) {
	p := newTestPolicy(t)
	requested := t0.Add(3 * time.Hour)
	assert.Equal(t, requested, p.Evaluate(&requested, t0))
}

func TestEvaluate_ClampsToMaxTTL(t *testing.T) {
	p := newTestPolicy(t)
	requested := t0.Add(30 * 24 * time.Hour)
	assert.Equal(t, t0.Add(7*24*time.Hour), p.Evaluate(&requested, t0))
}

func TestEvaluate_ExactlyMaxTTLIsKept(t *testing.T) {
	p := newTestPolicy(t)
	requested := t0.Add(7 * 24 * time.Hour)
	assert.Equal(t, requested, p.Evaluate(&requested, t0))
}

func TestReject_Boundary(t *testing.T) {
	p := newTestPolicy(t)

	assert.False(t, p.Reject(nil, t0), "absent expiry is never rejected")
	assert.True(t, p.Reject(ptr(t0), t0), "expiry equal to now is rejected")
	assert.True(t, p.Reject(ptr(t0.Add(-time.Second)), t0), "past expiry is rejected")
	assert.False(t, p.Reject(ptr(t0.Add(time.Nanosecond)), t0), "any strictly future expiry is accepted")
}
