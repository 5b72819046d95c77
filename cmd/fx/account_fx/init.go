package account_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"barangay/internal/config"
	"barangay/internal/repositories"
	"barangay/internal/services"
	"barangay/internal/storage"
	mem "barangay/pkg/memcache"
	"barangay/pkg/utils"
)

var Module = fx.Provide(
	provideAccountService, provideAccountRepo, provideResidentRepo, provideTokenIssuer, provideResidentService)

func provideAccountRepo(db *gorm.DB) repositories.AccountRepository {
	return repositories.NewAccountRepository(db)
}

func provideResidentRepo(db *gorm.DB) repositories.ResidentRepository {
	return repositories.NewResidentRepository(db)
}

func provideTokenIssuer(cfg *config.Config) *utils.TokenIssuer {
	return utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
}

func provideAccountService(
	db *gorm.DB,
	accountRepo repositories.AccountRepository,
	residentRepo repositories.ResidentRepository,
	tokens *utils.TokenIssuer,
	memcache mem.ResetTokenStore,
	mailService services.IMailService,
	log *zap.Logger,
) services.AccountServiceInterface {
	return services.NewAccountService(db, accountRepo, residentRepo, tokens, memcache, mailService, log)
}

func provideResidentService(
	db *gorm.DB,
	residentRepo repositories.ResidentRepository,
	requestRepo repositories.CertificateRequestRepository,
	paymentRepo repositories.PaymentRepository,
	store storage.Storage,
	log *zap.Logger,
) services.ResidentService {
	return services.NewResidentService(db, residentRepo, requestRepo, paymentRepo, store, log)
}
