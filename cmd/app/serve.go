package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"barangay/cmd/fx/account_fx"
	"barangay/cmd/fx/controllers_fx"
	"barangay/cmd/fx/dashboard"
	"barangay/cmd/fx/db_fx"
	"barangay/cmd/fx/mail_fx"
	"barangay/cmd/fx/memcache_fx"
	"barangay/cmd/fx/payment_service_fx"
	"barangay/cmd/fx/prompt_fx"
	"barangay/cmd/fx/request_fx"
	"barangay/internal/config"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if port != "" {
				cfg.App.Port = port
			}
			if err := cfg.RequireServe(); err != nil {
				return err
			}

			app := fx.New(
				baseOptions(cfg, log),
				db_fx.Module,
				db_fx.Migrate,
				memcache_fx.Module,
				mail_fx.Module,
				account_fx.Module,
				request_fx.Module,
				payment_service_fx.Module,
				dashboard.Module,
				prompt_fx.Module,
				controllers_fx.Module,

				fx.Invoke(StartServer),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func StartServer(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("starting HTTP server", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}
