// Package db opens the invoice store and manages its schema and seed data.
package db

import (
	"fmt"
	"time"

	"github.com/diewo77/ap-invoices/internal/config"
	applog "github.com/diewo77/ap-invoices/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Open connects to the configured database, retrying while Postgres starts.
func Open(cfg config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	log := applog.WithComponent("db")

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("db.Open: unsupported driver %q", cfg.Driver)
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var conn *gorm.DB
	var err error
	for i := 1; i <= connectAttempts; i++ {
		conn, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			err = conn.Exec("SELECT 1").Error
		}
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i).Msg("database not ready, retrying")
		if i < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("db.Open: failed to connect after %d attempts: %w", connectAttempts, err)
	}

	log.Info().Str("driver", cfg.Driver).Str("dbname", cfg.DBName).Msg("database connected")
	return conn, nil
}
