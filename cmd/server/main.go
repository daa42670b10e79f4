package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/shrubbery/internal/api"
	"github.com/mcoot/shrubbery/internal/config"
	"github.com/mcoot/shrubbery/internal/factory"
	"github.com/mcoot/shrubbery/internal/metrics"
	"github.com/mcoot/shrubbery/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("invalid log level", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{Endpoint: cfg.OTelEndpoint})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	var m *metrics.Manager
	if cfg.MetricsEnabled {
		m = metrics.NewManager(metrics.WithRuntimeCollectors())
	}

	app, err := factory.New(ctx, factory.FromConfig(cfg, logger, m))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("storage close failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("storage ready", slog.String("storage_type", cfg.StorageType))

	router := api.NewRouter(api.RouterConfig{
		Logger:        logger,
		PlayerService: app.PlayerService,
		ShrubService:  app.ShrubService,
		Store:         app.Storage,
		Metrics:       m,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Addr = cfg.Addr
	server := api.NewServer(router, serverConfig, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	}
}
