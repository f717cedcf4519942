package main

// Apply the generation-ledger migrations:
//   go run ./cmd/migrate
//   go run ./cmd/migrate -status

import (
	"context"
	"flag"
	"os"

	"docgen-backend/internal/shared/config"
	"docgen-backend/internal/shared/storage/db"
	"docgen-backend/internal/shared/telemetry"
)

func main() {
	status := flag.Bool("status", false, "print migration status instead of applying")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	defer telemetry.Sync()
	ctx := context.Background()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultMigrateOptions())
	if err != nil {
		telemetry.Error("migrate.connect.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if *status {
		err = db.MigrationStatus(ctx, sqlDB)
	} else {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"status_only": *status})
}
