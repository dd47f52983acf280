package db

import (
	"fmt"

	"officeshop/internal/config"
	"officeshop/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(gormLogLevel(cfg)),
	}

	switch cfg.DBDriver {
	case "sqlite":
		return OpenSQLite(cfg.DatabaseURL, gcfg)
	case "postgres", "":
		return OpenPostgres(cfg.PostgresDSN(), gcfg)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.DBDriver)
	}
}

// OpenPostgres はPostgresに接続する。gcfgがnilならログは出さない。
func OpenPostgres(dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)}
	}
	return gorm.Open(postgres.Open(dsn), gcfg)
}

// SQLiteは行ロックが無いので接続を1本にしてTxを直列にする。
func OpenSQLite(dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)}
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

// Migrate はテーブルを作成・更新する。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Review{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	)
}

func gormLogLevel(cfg config.Config) logger.LogLevel {
	if cfg.IsProd() {
		return logger.Error
	}
	if cfg.LogLevel == "debug" {
		return logger.Info
	}
	return logger.Warn
}
