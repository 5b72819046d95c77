package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"barangay/cmd/fx/db_fx"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.Database.URL == "" {
				return errors.New("config: POSTGRES_URL is required")
			}

			return runOnce(fx.New(
				baseOptions(cfg, log),
				db_fx.Module,
				db_fx.Migrate,
			))
		},
	}
}

// runOnce starts and immediately stops an fx app whose work happens in its
// invokes.
func runOnce(app *fx.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}
