// Package main implements the scry-import HTTP server, which queues uploaded
// images, turns them into exercises and exports the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/phrazzld/scry-import/internal/app"
	"github.com/phrazzld/scry-import/internal/config"
	"github.com/phrazzld/scry-import/internal/platform/logger"
	"github.com/phrazzld/scry-import/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a goose migration command (up, down, status, version) and exit")
	autoMigrate := flag.Bool("auto-migrate", false, "apply pending migrations before serving")
	flag.Parse()

	if err := run(*migrateCmd, *autoMigrate); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(migrateCmd string, autoMigrate bool) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_configured", cfg.Database.URL != "")

	ctx := context.Background()

	if migrateCmd != "" {
		return runMigrations(ctx, cfg, migrateCmd, log)
	}

	var opts []app.Option
	if autoMigrate {
		opts = append(opts, app.WithMigrations())
	}
	application, err := app.New(ctx, cfg, log, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return startHTTPServer(ctx, application, newRouter(application))
}

func runMigrations(ctx context.Context, cfg *config.Config, command string, log *slog.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is empty: set SCRY_DATABASE_URL to run migrations")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return postgres.Migrate(ctx, db, command, log)
}
