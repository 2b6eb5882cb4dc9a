package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/infrastructure/config"
	"github.com/davidleathers/dependable-access-control/internal/infrastructure/database"
	"github.com/davidleathers/dependable-access-control/internal/infrastructure/telemetry"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the configuration file")
		action     = flag.String("action", "up", "Migration action: up, down, steps, version, force")
		steps      = flag.Int("steps", 0, "Relative step count for the steps action")
		version    = flag.Int("version", -1, "Schema version for the force action")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *action, *steps, *version); err != nil {
		logger.Error("migration failed", zap.String("action", *action), zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger, action string, steps, version int) error {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}

	switch action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if steps == 0 {
			return errors.New("steps must be non-zero")
		}
		err = m.Steps(steps)
	case "force":
		if version < 0 {
			return errors.New("force requires -version")
		}
		err = m.Force(version)
	case "version":
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	current, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("schema version", zap.Uint("version", current), zap.Bool("dirty", dirty))
	return nil
}
