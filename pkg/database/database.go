package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library_management/pkg/config"
	"library_management/pkg/models"
)

const retryDelay = 5 * time.Second

// InitLendingDB connects to Postgres, retrying while the database starts up,
// and migrates the lending schema.
func InitLendingDB(cfg config.DBConfig, log *slog.Logger) (*gorm.DB, error) {
	log.Info("Connecting to database", "user", cfg.User, "host", cfg.Host, "port", cfg.Port, "db", cfg.Name)

	gormCfg := &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Warn)}

	var db *gorm.DB
	var err error
	attempts := max(cfg.MaxRetries, 1)
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
		if err == nil {
			break
		}
		log.Warn("Database connection attempt failed", "attempt", i+1, "max", attempts, "error", err)
		if i < attempts-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := Configure(db); err != nil {
		return nil, err
	}
	log.Info("Database connected successfully")

	if err := Ping(db); err != nil {
		return nil, err
	}
	log.Info("Database ping successful")

	return db, nil
}

// Configure tunes the pool and migrates every lending entity.
func Configure(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return Migrate(db)
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get database instance: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
