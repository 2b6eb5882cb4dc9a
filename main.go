package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/domain/classification"
	"github.com/davidleathers/dependable-access-control/internal/infrastructure/cache"
	"github.com/davidleathers/dependable-access-control/internal/infrastructure/config"
	"github.com/davidleathers/dependable-access-control/internal/infrastructure/database"
	"github.com/davidleathers/dependable-access-control/internal/infrastructure/telemetry"
	"github.com/davidleathers/dependable-access-control/internal/metrics"
	"github.com/davidleathers/dependable-access-control/internal/service/accesscontrol"
	"github.com/davidleathers/dependable-access-control/internal/sweeper"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("application failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting access control engine",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment))

	otelCfg := telemetry.DefaultConfig()
	otelCfg.Enabled = cfg.Telemetry.Enabled
	otelCfg.ServiceName = cfg.Telemetry.ServiceName
	otelCfg.ServiceVersion = cfg.Version
	otelCfg.Environment = cfg.Environment
	otelCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	otelCfg.SamplingRate = cfg.Telemetry.SamplingRate
	otelCfg.BatchTimeout = cfg.Telemetry.BatchTimeout

	provider, err := telemetry.InitializeOpenTelemetry(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	if err := database.MigrateUp(cfg.Database.URL, logger); err != nil {
		return err
	}
	tracer := telemetry.NewTracerFromProvider(provider.TracerProvider, "accesscontrol")
	pool, err := database.NewPool(ctx, cfg.Database, logger, tracer)
	if err != nil {
		return err
	}
	defer pool.Close()

	rules, err := database.NewClassificationRuleRepository(pool).ListRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load classification rules: %w", err)
	}
	logger.Info("classification rules loaded", zap.Int("count", len(rules)))
	classifier := classification.NewFieldClassifier(rules,
		classification.WithLogger(logger),
		classification.WithNameCacheSize(cfg.Classification.NameCacheSize))

	registry, err := metrics.NewRegistryWithProvider(provider.MeterProvider, "accesscontrol")
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	opts := []accesscontrol.Option{
		accesscontrol.WithMetrics(registry),
		accesscontrol.WithTracer(tracer),
	}
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		relCache, err := cache.NewRelationshipCache(client, cfg.Policy.Relationship.CacheTTL, logger,
			cache.WithNegativeTTL(cfg.Policy.Relationship.NegativeCacheTTL))
		if err != nil {
			return err
		}
		opts = append(opts, accesscontrol.WithRelationshipCache(relCache))
	}

	svc := accesscontrol.NewService(logger, accesscontrol.Stores{
		Permissions:   database.NewPermissionRepository(pool),
		Relationships: database.NewRelationshipRepository(pool),
		Transactions:  database.NewTransactionRepository(pool),
		Directory:     database.NewDirectoryRepository(pool),
		Audit:         database.NewAuditRepository(pool),
	}, classifier, cfg.Policy, opts...)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.Sweeper.Enabled {
		sw := sweeper.New(svc, registry, cfg.Sweeper.Interval, promRegistry, logger)
		go sw.Run(ctx)
	}

	server := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           newOpsMux(pool, promRegistry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("ops endpoint listening", zap.String("addr", cfg.Metrics.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("ops endpoint failed: %w", err)
	}

	logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
