// Package deletion runs the per-owner cleanup steps executed when an account
// is permanently removed.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Step is one unit of account cleanup
type Step interface {
	// Name identifies the step in logs and metrics
	Name() string

	// Priority orders steps; lower runs first
	Priority() int

	// Run removes the owner's data handled by this step
	Run(ctx context.Context, owner domain.Owner) error
}

// Runner executes registered steps in priority order
type Runner struct {
	steps   []Step
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRunner creates a runner over steps
func NewRunner(steps ...Step) *Runner {
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	return &Runner{
		steps:   sorted,
		logger:  log.With().Str("component", "deletion").Logger(),
		metrics: metrics.GetMetrics(),
	}
}

// Steps returns the step names in execution order
func (r *Runner) Steps() []string {
	names := make([]string, len(r.steps))
	for i, step := range r.steps {
		names[i] = step.Name()
	}
	return names
}

// Run executes every step for owner. A failing step does not stop the
// remaining ones; all failures are returned joined.
func (r *Runner) Run(ctx context.Context, owner domain.Owner) error {
	var errs []error
	for _, step := range r.steps {
		err := step.Run(ctx, owner)
		r.metrics.DeletionStepsTotal.WithLabelValues(step.Name(), strconv.FormatBool(err == nil)).Inc()

		if err != nil {
			r.logger.Error().Err(err).Str("owner", string(owner)).Str("step", step.Name()).Msg("Deletion step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.Name(), err))
			continue
		}
		r.logger.Info().Str("owner", string(owner)).Str("step", step.Name()).Msg("Deletion step completed")
	}
	return errors.Join(errs...)
}
