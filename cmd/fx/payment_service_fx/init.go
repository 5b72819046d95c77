package payment_service_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"barangay/internal/config"
	"barangay/internal/gateway"
	"barangay/internal/repositories"
	"barangay/internal/services"
	"barangay/internal/storage"
	mem "barangay/pkg/memcache"
)

var Module = fx.Provide(
	provideGateway, providePaymentRepo, providePaymentService,
)

func provideGateway(cfg *config.Config, log *zap.Logger) gateway.PaymentGateway {
	switch cfg.Gateway.Provider {
	case "payos":
		log.Info("payment gateway: payos")
		return gateway.NewPayOSClient(gateway.PayOSConfig{
			ClientID:    cfg.Gateway.PayOS.ClientID,
			APIKey:      cfg.Gateway.PayOS.APIKey,
			ChecksumKey: cfg.Gateway.PayOS.ChecksumKey,
		})
	default:
		log.Info("payment gateway: maya", zap.String("base_url", cfg.Gateway.Maya.BaseURL))
		return gateway.NewMayaClient(gateway.MayaConfig{
			BaseURL:   cfg.Gateway.Maya.BaseURL,
			PublicKey: cfg.Gateway.Maya.PublicKey,
			SecretKey: cfg.Gateway.Maya.SecretKey,
			Timeout:   cfg.Gateway.Timeout,
		})
	}
}

func providePaymentRepo(db *gorm.DB) repositories.PaymentRepository {
	return repositories.NewPaymentRepository(db)
}

func providePaymentService(
	db *gorm.DB,
	cfg *config.Config,
	requests repositories.CertificateRequestRepository,
	payments repositories.PaymentRepository,
	workflow services.CertificateRequestService,
	gw gateway.PaymentGateway,
	store storage.Storage,
	locker mem.RequestLocker,
	notifier *services.Notifier,
	log *zap.Logger,
) services.PaymentService {
	return services.NewPaymentService(db, requests, payments, workflow, gw, store, locker, notifier, services.PaymentConfig{
		Fees:           cfg.Fees,
		BaseURL:        cfg.App.BaseURL,
		GatewayTimeout: cfg.Gateway.Timeout,
	}, log)
}
