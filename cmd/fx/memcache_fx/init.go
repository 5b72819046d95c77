package memcache_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"barangay/internal/config"
	"barangay/internal/infra"
	mem "barangay/pkg/memcache"
)

var Module = fx.Provide(provideResetTokens, provideRequestLocker)

func provideResetTokens() mem.ResetTokenStore {
	return mem.NewResetTokens()
}

// provideRequestLocker shares locks through Redis when REDIS_ADDR is set so
// several API instances serialize on the same request. A single instance
// gets the in-process locker.
func provideRequestLocker(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (mem.RequestLocker, error) {
	if cfg.Redis.Addr == "" {
		log.Info("request locks are in-process", zap.Duration("ttl", cfg.Redis.LockTTL))
		return mem.NewLocalLocker(cfg.Redis.LockTTL), nil
	}

	client, err := infra.ConnectRedis(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	log.Info("request locks use redis", zap.String("addr", cfg.Redis.Addr))
	return mem.NewRedisLocker(client, cfg.Redis.LockTTL), nil
}
