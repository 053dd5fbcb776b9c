package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nkkko/pushreg/internal/config"
	"github.com/nkkko/pushreg/internal/engine"
	"github.com/nkkko/pushreg/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

type serveFlags struct {
	configFile string
	overrides  config.Overrides
}

func newRootCommand(versionString string) *cobra.Command {
	flags := &serveFlags{}

	root := &cobra.Command{
		Use:           "pushreg",
		Short:         "Push subscription registry",
		Long:          `pushreg stores per-owner push notification subscriptions with bounded lifetimes and serves them over an HTTP API.`,
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&flags.overrides.ServerAddr, "addr", "", "HTTP listen address (overrides config)")
	root.PersistentFlags().StringVar(&flags.overrides.DataDir, "data-dir", "", "data directory for badger storage (overrides config)")
	root.PersistentFlags().StringVar(&flags.overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&flags.overrides.StorageType, "storage", "", "storage backend: memory or badger (overrides config)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pushreg", versionString)
		},
	})

	return root
}

func runServe(ctx context.Context, flags *serveFlags) error {
	cfg, err := config.LoadConfig(flags.configFile, flags.overrides)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	if err := logging.Setup(cfg.ToLoggingConfig()); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	e, err := engine.CreateEngine(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create engine")
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := e.Start(ctx)
	if runErr != nil {
		log.Error().Err(runErr).Msg("Engine stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}
