package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"doodledrop/backend/internal/domain"
)

// DefaultInboxTTL 收件列表缓存的默认过期时间
const DefaultInboxTTL = 30 * time.Second

// inboxVersionTTL 版本号的保留时间，远长于列表缓存本身
const inboxVersionTTL = 24 * time.Hour

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// cacheIfVersionScript 版本号未变化时才写入列表缓存。
// KEYS[1] 列表键，KEYS[2] 版本键；ARGV 为期望版本、数据、毫秒 TTL
var cacheIfVersionScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then
	current = '0'
end
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Cache 收件列表缓存与投递去重
type Cache struct {
	client *Client
	ttl    time.Duration
}

// NewCache 创建缓存，ttl 为 0 时使用默认值
func NewCache(client *Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultInboxTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func inboxKey(code string) string {
	return fmt.Sprintf("doodle:inbox:%s", code)
}

func inboxVersionKey(code string) string {
	return fmt.Sprintf("doodle:inbox:%s:v", code)
}

func deliveryKey(key string) string {
	return fmt.Sprintf("doodle:delivery:%s", key)
}

// ========== 收件列表缓存 ==========

// InboxVersion 返回某邀请码收件列表的当前版本，每次失效加一。
// 读取持久化存储之前先取版本，回填时用它判断期间是否有新写入
func (c *Cache) InboxVersion(ctx context.Context, code string) (int64, error) {
	v, err := c.client.rdb.Get(ctx, inboxVersionKey(code)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return v, err
}

// CacheInboxIfVersion 版本仍为 version 时缓存完整收件列表。
// 期间发生过失效则放弃写入并返回 false
func (c *Cache) CacheInboxIfVersion(ctx context.Context, code string, version int64, items []domain.MailboxEntry) (bool, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return false, err
	}
	stored, err := cacheIfVersionScript.Run(ctx, c.client.rdb,
		[]string{inboxKey(code), inboxVersionKey(code)},
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// GetCachedInbox 获取缓存的收件列表，未命中时返回 ErrCacheMiss
func (c *Cache) GetCachedInbox(ctx context.Context, code string) ([]domain.MailboxEntry, error) {
	data, err := c.client.rdb.Get(ctx, inboxKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	items := make([]domain.MailboxEntry, 0)
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// InvalidateInbox 递增版本并删除收件列表缓存，
// 使失效前开始的读取无法再把旧列表写回
func (c *Cache) InvalidateInbox(ctx context.Context, code string) error {
	_, err := c.client.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, inboxVersionKey(code))
		pipe.Expire(ctx, inboxVersionKey(code), inboxVersionTTL)
		pipe.Del(ctx, inboxKey(code))
		return nil
	})
	return err
}

// ========== 投递去重 ==========

// ClaimDelivery 用 SETNX 占用投递标识，多个实例共享同一个去重窗口。
// 已被占用时返回 false 以及已记录的回执（仍在处理中则为空）
func (c *Cache) ClaimDelivery(ctx context.Context, key string, window time.Duration) (bool, string, error) {
	ok, err := c.client.rdb.SetNX(ctx, deliveryKey(key), "", window).Result()
	if err != nil || ok {
		return ok, "", err
	}
	receipt, err := c.client.rdb.Get(ctx, deliveryKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, "", nil
	}
	return false, receipt, err
}

// CompleteDelivery 记录投递回执并重置窗口
func (c *Cache) CompleteDelivery(ctx context.Context, key, receipt string, window time.Duration) error {
	return c.client.rdb.Set(ctx, deliveryKey(key), receipt, window).Err()
}

// ReleaseDelivery 撤销去重标记，用于写入失败后允许重试
func (c *Cache) ReleaseDelivery(ctx context.Context, key string) error {
	return c.client.rdb.Del(ctx, deliveryKey(key)).Err()
}

// Ping 检查 Redis 连接
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
