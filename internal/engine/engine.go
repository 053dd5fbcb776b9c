package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	apichi "github.com/nkkko/pushreg/internal/api/chi"
	"github.com/nkkko/pushreg/internal/clock"
	"github.com/nkkko/pushreg/internal/config"
	"github.com/nkkko/pushreg/internal/deletion"
	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/registry"
	"github.com/nkkko/pushreg/internal/storage"
	"github.com/nkkko/pushreg/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Engine is the main coordinator of the pushreg components
type Engine struct {
	config      *config.Config
	store       domain.SubscriptionStore
	registry    *registry.Registry
	deleter     *deletion.Runner
	api         *apichi.ChiAPI
	logger      zerolog.Logger
	telemetryFn func(context.Context) error
}

// CreateEngine builds every component from the application configuration
func CreateEngine(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	storageConfig := cfg.ToStorageConfig()
	if storageConfig.Type == storage.BadgerStorage {
		if err := os.MkdirAll(storageConfig.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := storage.CreateStorage(storageConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	e, err := NewEngine(cfg, store, clock.System{})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

// NewEngine wires the registry, deletion steps and HTTP API around an
// existing store. The engine takes ownership of store.
func NewEngine(cfg *config.Config, store domain.SubscriptionStore, clk domain.Clock) (*Engine, error) {
	reg, err := registry.New(cfg.ToRegistryConfig(), store, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	e := &Engine{
		config:   cfg,
		store:    store,
		registry: reg,
		logger:   log.With().Str("component", "engine").Logger(),
	}

	// a nil *Runner must not reach the API as a non-nil interface
	var deleter apichi.OwnerDeleter
	if cfg.Deletion.Enabled {
		e.deleter = deletion.NewRunner(
			deletion.NewPushSubscriptionStep(reg, cfg.Deletion.SubscriptionStepPriority),
		)
		deleter = e.deleter
	}

	e.api = apichi.NewChiAPI(cfg.ToAPIConfig(), reg, deleter)
	return e, nil
}

// Registry returns the subscription registry
func (e *Engine) Registry() domain.Registry {
	return e.registry
}

// Handler returns the HTTP handler of the API
func (e *Engine) Handler() http.Handler {
	return e.api.Handler()
}

// Start runs storage maintenance and the API server until ctx is cancelled
// or one of them fails
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info().
		Str("storage", e.config.Storage.StorageType).
		Dur("default_ttl", e.config.ToRegistryConfig().Expiry.DefaultTTL).
		Dur("max_ttl", e.config.ToRegistryConfig().Expiry.MaxTTL).
		Msg("Starting pushreg engine")

	telShutdown, err := telemetry.Setup(ctx, e.config.ToTelemetryConfig())
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to set up telemetry, continuing without it")
	} else {
		e.telemetryFn = telShutdown
	}

	g, ctx := errgroup.WithContext(ctx)

	if starter, ok := e.store.(storage.Starter); ok {
		g.Go(func() error {
			return starter.Start(ctx)
		})
	}

	g.Go(func() error {
		return e.api.Start(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error running engine: %w", err)
	}

	e.logger.Info().Msg("pushreg engine stopped")
	return nil
}

// Shutdown stops the API server, then closes storage and telemetry. It must
// be called after Start has returned.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Info().Msg("Shutting down pushreg engine")

	var errs []error

	// API first so no request reaches a closed store
	if err := e.api.Shutdown(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Failed to shut down API")
		errs = append(errs, err)
	}

	if err := e.store.Close(); err != nil {
		e.logger.Error().Err(err).Msg("Failed to close storage")
		errs = append(errs, err)
	}

	if e.telemetryFn != nil {
		if err := e.telemetryFn(ctx); err != nil {
			e.logger.Error().Err(err).Msg("Failed to shut down telemetry")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
