package hybrid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/redis"
)

// Store 混合存储实现：持久化存储负责写入与裁剪，Redis 缓存完整的收件列表。
// 写入成功后立即失效该邀请码的缓存，读取总能看到已确认的写入。
// 回填缓存带版本号校验，读取期间发生的写入会使回填作废。
type Store struct {
	storage.Store

	cache *redis.Cache
	opts  storage.Options
	log   *zap.Logger
}

// NewStore 创建混合存储实例
func NewStore(durable storage.Store, cache *redis.Cache, opts storage.Options, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		Store: durable,
		cache: cache,
		opts:  opts.Normalize(),
		log:   log,
	}
}

// Put 写入持久化存储后失效缓存。写入已提交，失效不受调用方取消影响
func (s *Store) Put(ctx context.Context, entry *domain.MailboxEntry) (int64, error) {
	id, err := s.Store.Put(ctx, entry)
	if err != nil {
		return 0, err
	}

	if err := s.cache.InvalidateInbox(context.WithoutCancel(ctx), entry.ToCode); err != nil {
		// 缓存失效失败时只能依赖 TTL 过期
		s.log.Warn("failed to invalidate inbox cache",
			zap.String("code", entry.ToCode),
			zap.Error(err),
		)
	}
	return id, nil
}

// List 优先读取缓存。缓存保存的是完整列表，按 limit 截取。
func (s *Store) List(ctx context.Context, code string, limit int) ([]domain.MailboxEntry, error) {
	limit = storage.ClampLimit(limit, s.opts.InboxLimit)

	cached, err := s.cache.GetCachedInbox(ctx, code)
	if err == nil {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		s.log.Warn("failed to read inbox cache", zap.String("code", code), zap.Error(err))
	}

	// 版本必须在读持久化存储之前获取
	version, verErr := s.cache.InboxVersion(ctx, code)
	if verErr != nil {
		s.log.Warn("failed to read inbox cache version", zap.String("code", code), zap.Error(verErr))
	}

	items, err := s.Store.List(ctx, code, s.opts.InboxLimit)
	if err != nil {
		return nil, err
	}

	if verErr == nil {
		stored, err := s.cache.CacheInboxIfVersion(ctx, code, version, items)
		switch {
		case err != nil:
			s.log.Warn("failed to cache inbox", zap.String("code", code), zap.Error(err))
		case !stored:
			s.log.Debug("inbox changed during read, cache not refilled", zap.String("code", code))
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Health 同时检查持久化存储与 Redis
func (s *Store) Health() error {
	if err := s.Store.Health(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
