// Package database opens the forum database and owns its schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/config"
	"github.com/nocson47/beaconofknowledge/internal/middleware"
	"github.com/nocson47/beaconofknowledge/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	connMaxLifetime     = 5 * time.Minute
)

// PersistentModels lists every table the forum stores. AutoMigrate and the SQL migrations
// must agree on it.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Thread{},
		&models.Reply{},
		&models.Vote{},
		&models.Report{},
		&models.AuditLog{},
		&models.PasswordReset{},
	}
}

// Connect opens PostgreSQL and brings the schema up to date. MIGRATIONS_AUTO applies the
// embedded SQL migrations; otherwise non-production environments AutoMigrate and production
// expects cmd/migrate to have run.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: NewQueryLogger(middleware.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	middleware.Logger.Info("database connected", "host", cfg.DBHost, "name", cfg.DBName)

	if err := migrateSchema(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

func migrateSchema(db *gorm.DB, cfg *config.Config) error {
	if cfg.MigrationsAuto {
		return RunUp(cfg.DatabaseURL(), middleware.Logger)
	}
	if cfg.IsProduction() {
		return nil
	}
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	middleware.Logger.Info("schema auto-migrated", "tables", len(PersistentModels()))
	return nil
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(positiveOr(cfg.DBMaxOpenConns, defaultMaxOpenConns))
	sqlDB.SetMaxIdleConns(positiveOr(cfg.DBMaxIdleConns, defaultMaxIdleConns))
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Ping checks the connection within ctx.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
