package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/ap-invoices/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate creates or updates the schema from the gorm models.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.Invoice{}, &models.InvoiceLine{}); err != nil {
		return fmt.Errorf("db.Migrate: %w", err)
	}
	for _, table := range []string{"invoices", "invoice_lines"} {
		if !conn.Migrator().HasTable(table) {
			return errors.New("db.Migrate: missing table after migration: " + table)
		}
	}
	return nil
}

// MigrateSQL applies the embedded SQL migrations to a Postgres database.
// databaseURL must be in postgres:// form.
func MigrateSQL(databaseURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("db.MigrateSQL: source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("db.MigrateSQL: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db.MigrateSQL: up: %w", err)
	}
	return nil
}
