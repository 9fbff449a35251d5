package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/kafedra/internal/config"
	"github.com/BradenHooton/kafedra/migrations"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Migrator applies the embedded goose migrations
type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenMigrator opens a database/sql handle for goose
func OpenMigrator(cfg *config.DatabaseConfig, logger *slog.Logger) (*Migrator, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open migration connection: %w", err)
	}
	return NewMigrator(db, logger)
}

// NewMigrator uses an already opened handle, which it then owns
func NewMigrator(db *sql.DB, logger *slog.Logger) (*Migrator, error) {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to set migration dialect: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{db: db, logger: logger}, nil
}

// Up applies all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, _ := goose.GetDBVersionContext(ctx, m.db)
	m.logger.Info("migrations applied", slog.Int64("version", version))
	return nil
}

// Down rolls back the latest migration
func (m *Migrator) Down(ctx context.Context) error {
	if err := goose.DownContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	version, _ := goose.GetDBVersionContext(ctx, m.db)
	m.logger.Info("migration rolled back", slog.Int64("version", version))
	return nil
}

// Status prints the state of every migration through goose's logger
func (m *Migrator) Status(ctx context.Context) error {
	if err := goose.StatusContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	return m.db.Close()
}
