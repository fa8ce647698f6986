package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"myinfra-hq/smartgate/pkg/audit"
	"myinfra-hq/smartgate/pkg/config"
	"myinfra-hq/smartgate/pkg/gateway"
	"myinfra-hq/smartgate/pkg/gateway/auth"
	"myinfra-hq/smartgate/pkg/gateway/breaker"
	"myinfra-hq/smartgate/pkg/gateway/pipeline"
	"myinfra-hq/smartgate/pkg/gateway/proxy"
	"myinfra-hq/smartgate/pkg/gateway/ratelimit"
	"myinfra-hq/smartgate/pkg/server"
	"myinfra-hq/smartgate/pkg/store"
	"myinfra-hq/smartgate/pkg/telemetry/logging"
	"myinfra-hq/smartgate/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watch         bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

The server listens on the configured address and routes every request
through the processing pipeline: resolve, CSRF, authenticate, rate
limit, and breaker-wrapped forwarding to the project's upstream.

Examples:
  # Start with default config
  smartgate run

  # Start with custom config
  smartgate run --config /etc/smartgate/config.yaml

  # Override listen address
  smartgate run --listen 0.0.0.0:8080

  # Reload projects when the config file changes
  smartgate run --watch

  # Validate config without starting the server
  smartgate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload projects when the config file changes")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger := logging.Setup(&cfg.Telemetry.Logging)

	registry, err := gateway.NewRegistry(cfg.Projects)
	if err != nil {
		return fmt.Errorf("project compilation failed: %w", err)
	}

	if runFlags.dryRun {
		fmt.Printf("✓ Configuration valid (%d projects)\n", len(cfg.Projects))
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Shared key-value store
	kv := store.NewRedis(&cfg.Store)
	defer kv.Close()
	if err := kv.Ping(ctx); err != nil {
		// The limiter fails open and sessions degrade to absent, so a
		// store outage at startup is a warning, not a refusal to start.
		slog.Warn("key-value store unreachable at startup", "error", err)
	}

	// Metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	// Audit log
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		storage, err := audit.OpenStorage(cfg.Audit.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open audit storage: %w", err)
		}
		defer storage.Close()

		recorder = audit.NewRecorder(storage, cfg.Audit.BufferSize)
		defer recorder.Close()

		retention := audit.NewScheduler(storage, cfg.Audit.RetentionDays, cfg.Audit.PruneSchedule)
		if err := retention.Start(ctx); err != nil {
			slog.Warn("failed to start audit retention scheduler", "error", err)
		}
	}

	// Pipeline
	handler := pipeline.New(
		registry,
		auth.New(kv, logger),
		ratelimit.NewLimiter(kv, logger),
		breaker.NewPool(),
		proxy.New(logger),
		pipeline.Options{
			Metrics:       collector,
			Recorder:      recorder,
			Logger:        logger,
			GlobalTimeout: cfg.Gateway.GlobalTimeout,
		},
	)

	// Config watcher: swaps in a fresh project registry on change.
	if runFlags.watch {
		watcher := config.NewWatcher(cfgFile, logger)
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) {
				reg, err := gateway.NewRegistry(next.Projects)
				if err != nil {
					slog.Error("reloaded config has invalid projects, keeping previous registry", "error", err)
					return
				}
				handler.SwapRegistry(reg)
			})
			if err != nil {
				slog.Error("config watcher terminated", "error", err)
			}
		}()
	}

	slog.Info("gateway initialized",
		"projects", len(cfg.Projects),
		"audit_enabled", cfg.Audit.Enabled,
		"metrics_enabled", cfg.Telemetry.Metrics.Enabled,
	)

	srv := server.NewServer(&cfg.Server, &cfg.Telemetry.Metrics, handler, collector, kv)
	return srv.Start(ctx)
}
