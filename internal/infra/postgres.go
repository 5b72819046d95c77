package infra

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func gormConfig(log *zap.Logger) *gorm.Config {
	return &gorm.Config{
		// maps unique violations to gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         NewGormLogger(log),
	}
}

func InitPostgresql(dsn string, log *zap.Logger) (*gorm.DB, error) {
	connectionPool, err := gorm.Open(postgres.Open(dsn), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := connectionPool.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return connectionPool, nil
}

// OpenDialector opens any gorm dialector with the application settings.
// Tests use it with sqlite.
func OpenDialector(d gorm.Dialector, log *zap.Logger) (*gorm.DB, error) {
	return gorm.Open(d, gormConfig(log))
}

func ClosePostgresql(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("get database instance", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Error("close database connection", zap.Error(err))
	} else {
		log.Info("PostgreSQL database connection closed")
	}
}
