package kv

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lubeqc/internal/config"
	"github.com/smallbiznis/lubeqc/internal/kv/domain"
	"github.com/smallbiznis/lubeqc/internal/kv/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("kv",
	fx.Provide(NewRedisClient),
	fx.Provide(NewStore),
	fx.Provide(NewLocker),
)

// NewRedisClient returns nil when REDIS_ADDR is unset.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.RedisEnabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return client.Close()
		},
	})
	return client
}

type StoreParams struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	Redis *redis.Client `optional:"true"`
	Log   *zap.Logger
}

func NewStore(p StoreParams) domain.Store {
	if p.Cfg.KV.Backend == config.KVBackendRedis {
		if p.Redis != nil {
			return repository.NewRedisStore(p.Redis, p.Cfg.KV.KeyPrefix)
		}
		p.Log.Warn("kv backend redis requested without REDIS_ADDR, using database")
	}
	return repository.NewGormStore(p.DB)
}

// NewLocker returns a nil Locker unless redis write locking is enabled.
func NewLocker(cfg config.Config, client *redis.Client) domain.Locker {
	if client == nil || !cfg.Redis.LockWrites {
		return nil
	}
	return repository.NewRedisLocker(client, cfg.KV.KeyPrefix, 5*time.Second)
}
