package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/farmgate/internal/config"
	"github.com/BradenHooton/farmgate/migrations"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Migrate applies the embedded goose migrations using the database config.
func Migrate(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) error {
	return MigrateDSN(ctx, cfg.DSN(), logger)
}

// MigrateDSN applies the embedded goose migrations to the database at dsn.
// goose runs over database/sql, so lib/pq is used here while the
// application itself talks to Postgres through pgxpool.
func MigrateDSN(ctx context.Context, dsn string, logger *slog.Logger) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	logger.Info("database migrations applied", slog.Int64("version", version))
	return nil
}
