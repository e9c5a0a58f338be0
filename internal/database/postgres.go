package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/crowdprice-backend/internal/config"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(cfg *config.Config) (*gorm.DB, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "connect", time.Since(start))
	}()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "connect", "error")
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := ConfigurePool(db, cfg); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "connect", "error")
		return nil, err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "connect", "success")
	return db, nil
}

func ConfigurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	if cfg.DatabaseMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	}
	if cfg.DatabaseMaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	}
	if cfg.DatabaseConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	}
	return nil
}
