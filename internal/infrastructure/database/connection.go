package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/infrastructure/config"
	"github.com/davidleathers/dependable-access-control/internal/infrastructure/telemetry"
)

const applicationName = "accessd"

// NewPool creates a pgx pool from cfg and verifies it with a ping. When
// tracer is non-nil every statement is traced as a client span.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger, tracer telemetry.TracerInterface) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	configurePgxPool(poolConfig, cfg, logger)
	if tracer != nil {
		poolConfig.ConnConfig.Tracer = queryTracer{tracer: tracer}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection pool initialized",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.Int32("max_connections", poolConfig.MaxConns))

	return pool, nil
}

func configurePgxPool(pc *pgxpool.Config, cfg config.DatabaseConfig, logger *zap.Logger) {
	pc.MaxConns = cfg.MaxConns
	if pc.MaxConns <= 0 {
		pc.MaxConns = 25
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	} else {
		pc.MaxConnLifetime = 30 * time.Minute
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	} else {
		pc.MaxConnIdleTime = 10 * time.Minute
	}
	pc.HealthCheckPeriod = time.Minute
	pc.ConnConfig.ConnectTimeout = 5 * time.Second

	statementTimeout := 30 * time.Second
	if cfg.QueryTimeout > 0 {
		statementTimeout = cfg.QueryTimeout
	}
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	pc.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pc.ConnConfig.RuntimeParams["lock_timeout"] = "10s"
	pc.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(statementTimeout.Milliseconds(), 10)
	pc.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = "60s"

	pc.BeforeConnect = func(_ context.Context, cc *pgx.ConnConfig) error {
		logger.Debug("establishing database connection",
			zap.String("host", cc.Host),
			zap.Uint16("port", cc.Port))
		return nil
	}
}
