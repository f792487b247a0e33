package persistence

import (
	"context"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrationCommand is a goose command supported by the migrate CLI.
type MigrationCommand string

const (
	MigrateUp     MigrationCommand = "up"
	MigrateDown   MigrationCommand = "down"
	MigrateStatus MigrationCommand = "status"
)

// RunMigrations applies the embedded SQL migrations against dsn.
func RunMigrations(ctx context.Context, dsn string, command MigrationCommand, logger *zap.Logger) error {
	if dsn == "" {
		return ErrNoDatabase
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	logger.Info("running migrations", zap.String("command", string(command)))
	switch command {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, migrationsDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err == nil {
		logger.Info("migrations applied", zap.Int64("version", version))
	}
	return nil
}
