package mail_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"barangay/internal/config"
	"barangay/internal/services"
)

var Module = fx.Provide(provideMailService)

// provideMailService falls back to logging messages when no SMTP account is
// configured.
func provideMailService(cfg *config.Config, log *zap.Logger) services.IMailService {
	if cfg.SMTP.Username == "" || cfg.SMTP.Password == "" {
		log.Warn("SMTP credentials missing, mail will only be logged")
		return services.NewLogMailService(log)
	}

	from := cfg.SMTP.From
	if from == "" {
		from = cfg.SMTP.Username
	}
	return services.NewSMTPMailService(services.SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		From:       from,
		FromName:   cfg.SMTP.FromName,
		UseSSL:     cfg.SMTP.UseSSL,
		RequireTLS: true,

		AppName:     cfg.SMTP.FromName,
		FrontendURL: cfg.App.FrontendURL,
	})
}
