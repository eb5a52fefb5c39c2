package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/partygames/internal/auth"
	"github.com/jason-s-yu/partygames/internal/cache"
	"github.com/jason-s-yu/partygames/internal/config"
	"github.com/jason-s-yu/partygames/internal/database"
	"github.com/jason-s-yu/partygames/internal/handlers"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/letters"
	"github.com/jason-s-yu/partygames/internal/locker"
	"github.com/jason-s-yu/partygames/internal/session"
	"github.com/jason-s-yu/partygames/internal/sweeper"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
)

// redisConn and pgPool let injector.Shutdown close what was opened.
type redisConn struct{ *redis.Client }

func (r redisConn) Shutdown() error { return r.Close() }

type pgPool struct{ *pgxpool.Pool }

func (p pgPool) Shutdown() error {
	p.Close()
	return nil
}

// store bundles the session store with the content writer so seeding reaches the same backend.
type store interface {
	session.Store
	database.ContentWriter
}

// NewContainer registers lazy providers for every component. Nothing connects until invoked.
func NewContainer(cfg config.Config, logger *logrus.Logger) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue[logrus.FieldLogger](injector, logger)

	do.Provide(injector, func(i *do.Injector) (redisConn, error) {
		rdb, err := cache.ConnectRedis(context.Background(), cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return redisConn{}, err
		}
		return redisConn{rdb}, nil
	})

	do.Provide(injector, func(i *do.Injector) (pgPool, error) {
		pool, err := database.ConnectDB(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return pgPool{}, err
		}
		logger.WithField("store", "postgres").Info("connected to database")
		return pgPool{pool}, nil
	})

	do.Provide(injector, func(i *do.Injector) (store, error) {
		if cfg.Store == config.StoreMemory {
			logger.Warn("using the in-memory store; state is lost on restart")
			return database.NewMemory(), nil
		}
		pool, err := do.Invoke[pgPool](i)
		if err != nil {
			return nil, err
		}
		return database.NewPostgres(pool.Pool), nil
	})

	do.Provide(injector, func(i *do.Injector) (*hub.Hub, error) {
		return hub.New(logger), nil
	})

	do.Provide(injector, func(i *do.Injector) (*hub.RedisBridge, error) {
		rdb, err := do.Invoke[redisConn](i)
		if err != nil {
			return nil, err
		}
		return hub.NewRedisBridge(rdb.Client, do.MustInvoke[*hub.Hub](i), logger), nil
	})

	do.Provide(injector, func(i *do.Injector) (*session.Service, error) {
		rdb, err := do.Invoke[redisConn](i)
		if err != nil {
			return nil, err
		}
		st, err := do.Invoke[store](i)
		if err != nil {
			return nil, err
		}
		bridge, err := do.Invoke[*hub.RedisBridge](i)
		if err != nil {
			return nil, err
		}
		kv := cache.NewRedisStore(rdb.Client, cfg.CacheLocal)
		return session.NewService(session.Options{
			Store:        st,
			Locker:       locker.NewRedsync(rdb.Client, cfg.SessionLockTTL, logger),
			Orders:       letters.NewAllocator(kv),
			Publisher:    bridge,
			Journal:      cache.NewEventQueue(rdb.Client, cfg.HistorianQueue),
			Cache:        kv,
			ClockSeconds: float64(cfg.ClockDefaultSeconds),
			Logger:       logger,
		}), nil
	})

	do.Provide(injector, func(i *do.Injector) (*auth.Signer, error) {
		expire, err := auth.ParseExpire(cfg.TokenExpire)
		if err != nil {
			return nil, err
		}
		if cfg.PrivateKeyPath != "" {
			return auth.NewSignerFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, expire)
		}
		logger.Warn("no JWT key paths configured; using an ephemeral key pair")
		return auth.NewSigner(expire)
	})

	do.Provide(injector, func(i *do.Injector) (*sweeper.Sweeper, error) {
		svc, err := do.Invoke[*session.Service](i)
		if err != nil {
			return nil, err
		}
		return sweeper.New(svc, cfg.SweepSchedule, logger)
	})

	do.Provide(injector, func(i *do.Injector) (*handlers.APIServer, error) {
		svc, err := do.Invoke[*session.Service](i)
		if err != nil {
			return nil, err
		}
		signer, err := do.Invoke[*auth.Signer](i)
		if err != nil {
			return nil, err
		}
		return handlers.NewAPIServer(svc, do.MustInvoke[*hub.Hub](i), signer, logger, cfg.AllowedOrigins), nil
	})

	return injector
}
