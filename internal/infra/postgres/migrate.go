// Package postgres управление схемой PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/IT-Nick/gatekeeper/internal/infra/postgres/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// Migrator применяет и откатывает миграции
type Migrator struct {
	db       *bun.DB
	migrator *migrate.Migrator
}

// NewMigrator открывает отдельное соединение для миграций
func NewMigrator(dsn string) *Migrator {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &Migrator{
		db:       db,
		migrator: migrate.NewMigrator(db, migrations.Migrations),
	}
}

// Up применяет все новые миграции
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if err := m.migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to lock migrations: %w", err)
	}
	defer func() {
		if err := m.migrator.Unlock(ctx); err != nil {
			slog.Warn("failed to unlock migrations", "error", err)
		}
	}()

	group, err := m.migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	if group.IsZero() {
		slog.Info("database is up to date")
		return nil
	}
	slog.Info("migrations applied", "group", group.String())
	return nil
}

// Down откатывает последнюю группу миграций
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if err := m.migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to lock migrations: %w", err)
	}
	defer func() {
		if err := m.migrator.Unlock(ctx); err != nil {
			slog.Warn("failed to unlock migrations", "error", err)
		}
	}()

	group, err := m.migrator.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	if group.IsZero() {
		slog.Info("nothing to roll back")
		return nil
	}
	slog.Info("migrations rolled back", "group", group.String())
	return nil
}

// Close закрывает соединение
func (m *Migrator) Close() error {
	return m.db.Close()
}
