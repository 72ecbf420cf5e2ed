package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCache 本地内存缓存，带 TTL。
// 单实例部署时用作投递去重窗口；多实例部署改用 Redis。
type LocalCache struct {
	data sync.Map
	ttl  time.Duration
	now  func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存并启动后台清理
//
// 参数:
//   - ttl: 默认过期时间
//   - cleanupInterval: 清理过期条目的周期，<= 0 时不启动清理
func NewLocalCache(ttl, cleanupInterval time.Duration) *LocalCache {
	c := &LocalCache{
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// Get 获取缓存值
func (c *LocalCache) Get(key string) (interface{}, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if c.expired(entry) {
		c.data.CompareAndDelete(key, entry)
		return nil, false
	}
	return entry.value, true
}

// Set 设置缓存值，ttl 为 0 时使用默认值
func (c *LocalCache) Set(key string, value interface{}, ttl time.Duration) {
	c.data.Store(key, c.newEntry(value, ttl))
}

// SetIfAbsent 仅当 key 不存在或已过期时写入，返回是否写入成功
func (c *LocalCache) SetIfAbsent(key string, value interface{}, ttl time.Duration) bool {
	entry := c.newEntry(value, ttl)
	for {
		actual, loaded := c.data.LoadOrStore(key, entry)
		if !loaded {
			return true
		}
		existing := actual.(*cacheEntry)
		if !c.expired(existing) {
			return false
		}
		if c.data.CompareAndSwap(key, existing, entry) {
			return true
		}
	}
}

// Delete 删除缓存值
func (c *LocalCache) Delete(key string) {
	c.data.Delete(key)
}

// Len 返回当前条目数（包括尚未清理的过期条目）
func (c *LocalCache) Len() int {
	n := 0
	c.data.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// ClaimDelivery 占用投递标识。窗口期内首次出现返回 true；
// 已被占用时返回 false 以及 CompleteDelivery 记录的回执（仍在处理中则为空）
func (c *LocalCache) ClaimDelivery(_ context.Context, key string, window time.Duration) (bool, string, error) {
	if c.SetIfAbsent(key, "", window) {
		return true, "", nil
	}
	v, ok := c.Get(key)
	if !ok {
		// 恰好在两次调用之间过期，重新抢占
		return c.SetIfAbsent(key, "", window), "", nil
	}
	receipt, _ := v.(string)
	return false, receipt, nil
}

// CompleteDelivery 记录投递回执
func (c *LocalCache) CompleteDelivery(_ context.Context, key, receipt string, window time.Duration) error {
	c.Set(key, receipt, window)
	return nil
}

// ReleaseDelivery 撤销占用，用于写入失败后允许重试
func (c *LocalCache) ReleaseDelivery(_ context.Context, key string) error {
	c.Delete(key)
	return nil
}

// Close 停止后台清理
func (c *LocalCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *LocalCache) newEntry(value interface{}, ttl time.Duration) *cacheEntry {
	if ttl <= 0 {
		ttl = c.ttl
	}
	return &cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *LocalCache) expired(entry *cacheEntry) bool {
	return !c.now().Before(entry.expiresAt)
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purgeExpired()
		}
	}
}

func (c *LocalCache) purgeExpired() {
	c.data.Range(func(key, value interface{}) bool {
		entry := value.(*cacheEntry)
		if c.expired(entry) {
			c.data.CompareAndDelete(key, entry)
		}
		return true
	})
}
