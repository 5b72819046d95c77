package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"barangay/cmd/fx/account_fx"
	"barangay/cmd/fx/db_fx"
	"barangay/cmd/fx/mail_fx"
	"barangay/cmd/fx/memcache_fx"
	"barangay/internal/models/request_models"
	"barangay/internal/services"
	"barangay/pkg/utils"
)

func createAdminCmd() *cobra.Command {
	var in request_models.CreateAdminRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.Database.URL == "" {
				return errors.New("config: POSTGRES_URL is required")
			}

			create := func(accounts services.AccountServiceInterface) error {
				admin, err := accounts.CreateAdmin(context.Background(), in)
				if err != nil {
					var appErr *utils.AppError
					if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
						return fmt.Errorf("%s: %v", appErr.Message, appErr.Fields)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", admin.Email, admin.ID)
				return nil
			}

			return runOnce(fx.New(
				baseOptions(cfg, log),
				db_fx.Module,
				db_fx.Migrate,
				memcache_fx.Module,
				mail_fx.Module,
				account_fx.Module,
				fx.Invoke(create),
			))
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login e-mail")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
