package db_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"barangay/internal/config"
	"barangay/internal/infra"
)

var Module = fx.Provide(provideDB)

func provideDB(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := infra.InitPostgresql(cfg.Database.URL, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			infra.ClosePostgresql(db, log)
			return nil
		},
	})
	return db, nil
}

// Migrate applies pending schema migrations at startup.
var Migrate = fx.Invoke(func(db *gorm.DB, log *zap.Logger) error {
	if err := infra.Migrations(db); err != nil {
		return err
	}
	log.Info("database migrations applied")
	return nil
})
