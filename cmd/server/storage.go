package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"doodledrop/backend/internal/config"
	"doodledrop/backend/internal/health"
	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/bolt"
	"doodledrop/backend/internal/storage/hybrid"
	"doodledrop/backend/internal/storage/memory"
	"doodledrop/backend/internal/storage/postgres"
	"doodledrop/backend/internal/storage/redis"
	sqlstore "doodledrop/backend/internal/storage/sql"
)

// storageBackend 服务运行期间持有的存储资源
type storageBackend struct {
	store storage.Store
	redis *redis.Client
	cache *redis.Cache
}

func (b *storageBackend) pingers() map[string]health.Pinger {
	if b.redis == nil {
		return nil
	}
	return map[string]health.Pinger{"redis": b.redis}
}

func (b *storageBackend) close(log *zap.Logger) {
	if err := b.store.Close(); err != nil {
		log.Warn("failed to close store", zap.Error(err))
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn("failed to close redis", zap.Error(err))
		}
	}
}

// initializeStorage 按配置选择持久层，启用 Redis 时在外层加收件列表缓存
func initializeStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storageBackend, error) {
	opts := storage.Options{
		InboxLimit:  cfg.Mailbox.InboxLimit,
		TrimOnWrite: cfg.Mailbox.TrimOnWrite,
	}.Normalize()

	durable, err := initializeDurableStore(ctx, cfg, opts, log)
	if err != nil {
		return nil, err
	}

	backend := &storageBackend{store: durable}
	if !cfg.Redis.Enabled {
		return backend, nil
	}

	client, err := redis.New(&cfg.Redis, log)
	if err != nil {
		_ = durable.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	backend.redis = client
	backend.cache = redis.NewCache(client, cfg.Redis.InboxTTL)
	backend.store = hybrid.NewStore(durable, backend.cache, opts, log)

	log.Info("redis inbox cache enabled",
		zap.String("address", cfg.Redis.Address),
		zap.Duration("inbox_ttl", cfg.Redis.InboxTTL),
	)
	return backend, nil
}

func initializeDurableStore(ctx context.Context, cfg *config.Config, opts storage.Options, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		return initializeDatabaseStorage(ctx, cfg, opts, log)
	}

	switch cfg.Storage.Type {
	case "memory":
		log.Warn("using memory storage, doodles are lost on restart")
		return memory.NewStore(opts), nil
	case "bolt", "":
		store, err := bolt.NewStore(cfg.Storage.Path, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		log.Info("using bolt storage", zap.String("path", cfg.Storage.Path))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// initializeDatabaseStorage 初始化数据库存储
func initializeDatabaseStorage(ctx context.Context, cfg *config.Config, opts storage.Options, log *zap.Logger) (storage.Store, error) {
	log.Info("initializing database storage",
		zap.String("database_type", cfg.Database.Type),
		zap.String("engine", cfg.Database.Engine),
	)

	if cfg.Database.Type == "postgres" && cfg.Database.Engine == "pgx" {
		client, err := postgres.New(&cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		store, err := postgres.NewStore(ctx, client, opts)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		return store, nil
	}

	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sql store: %w", err)
	}
	return store, nil
}
