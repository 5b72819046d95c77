package request_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"barangay/internal/config"
	"barangay/internal/gateway"
	"barangay/internal/infra"
	"barangay/internal/repositories"
	"barangay/internal/services"
	"barangay/internal/storage"
	mem "barangay/pkg/memcache"
)

var Module = fx.Provide(
	provideStorage,
	provideEventPublisher,
	provideNotifier,
	provideRequestRepo,
	provideRequestService,
)

func provideStorage(lc fx.Lifecycle, cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Driver == "gcs" {
		gcs, err := storage.NewGCSStorage(context.Background(), cfg.Storage.Bucket, cfg.Storage.PublicURL)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return gcs.Close() },
		})
		return gcs, nil
	}
	return storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicURL)
}

// provideEventPublisher publishes to Kafka when brokers are configured.
func provideEventPublisher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (services.EventPublisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, status events are dropped")
		return services.NewNoopEventPublisher(), nil
	}

	producer, err := infra.NewKafkaProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return producer.Close() },
	})
	return services.NewKafkaEventPublisher(producer, cfg.Kafka.RequestTopic, cfg.Kafka.PaymentTopic, log), nil
}

func provideNotifier(lc fx.Lifecycle, publisher services.EventPublisher, mail services.IMailService, log *zap.Logger) *services.Notifier {
	n := services.NewNotifier(publisher, mail, log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			n.Wait()
			return nil
		},
	})
	return n
}

func provideRequestRepo(db *gorm.DB) repositories.CertificateRequestRepository {
	return repositories.NewCertificateRequestRepository(db)
}

func provideRequestService(
	db *gorm.DB,
	cfg *config.Config,
	requestRepo repositories.CertificateRequestRepository,
	residents repositories.ResidentRepository,
	payments repositories.PaymentRepository,
	store storage.Storage,
	gw gateway.PaymentGateway,
	locker mem.RequestLocker,
	notifier *services.Notifier,
	log *zap.Logger,
) services.CertificateRequestService {
	return services.NewCertificateRequestService(db, requestRepo, residents, payments, store, gw, locker, notifier, services.RequestConfig{
		GatewayTimeout: cfg.Gateway.Timeout,
	}, log)
}
