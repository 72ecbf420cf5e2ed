package hybrid

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doodledrop/backend/internal/config"
	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/memory"
	"doodledrop/backend/internal/storage/redis"
	"doodledrop/backend/internal/storage/storagetest"
)

func newRedisCache(t *testing.T) *redis.Cache {
	t.Helper()
	addr := os.Getenv("DOODLE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOODLE_TEST_REDIS_ADDR not set")
	}
	client, err := redis.New(&config.RedisConfig{Address: addr, DB: 14}, nil)
	require.NoError(t, err)
	require.NoError(t, client.Client().FlushDB(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return redis.NewCache(client, time.Minute)
}

func TestStore(t *testing.T) {
	storagetest.RunStoreTests(t, func(t *testing.T, opts storage.Options) storage.Store {
		cache := newRedisCache(t)
		return NewStore(memory.NewStore(opts), cache, opts, nil)
	})
}

func TestWriteInvalidatesCachedInbox(t *testing.T) {
	cache := newRedisCache(t)
	store := NewStore(memory.NewStore(storage.DefaultOptions()), cache, storage.DefaultOptions(), nil)
	ctx := context.Background()

	_, err := store.Put(ctx, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:1"})
	require.NoError(t, err)

	first, err := store.List(ctx, "AB3DE7FG", 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = store.Put(ctx, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:2"})
	require.NoError(t, err)

	second, err := store.List(ctx, "AB3DE7FG", 0)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "data:2", second[0].DataURL)
}

// cancelAfterCommit 写入提交后立刻取消调用方上下文，模拟客户端在响应前断开
type cancelAfterCommit struct {
	storage.Store
	cancel context.CancelFunc
}

func (d *cancelAfterCommit) Put(ctx context.Context, entry *domain.MailboxEntry) (int64, error) {
	id, err := d.Store.Put(ctx, entry)
	d.cancel()
	return id, err
}

// writeDuringList 在持久化读取完成、缓存回填之前插入一次写入
type writeDuringList struct {
	storage.Store
	onList func()
}

func (d *writeDuringList) List(ctx context.Context, code string, limit int) ([]domain.MailboxEntry, error) {
	items, err := d.Store.List(ctx, code, limit)
	if hook := d.onList; hook != nil {
		d.onList = nil
		hook()
	}
	return items, err
}

func TestInvalidationSurvivesCanceledRequest(t *testing.T) {
	cache := newRedisCache(t)
	opts := storage.DefaultOptions()
	durable := &cancelAfterCommit{Store: memory.NewStore(opts)}
	store := NewStore(durable, cache, opts, nil)
	bg := context.Background()

	durable.cancel = func() {}
	_, err := store.Put(bg, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:1"})
	require.NoError(t, err)
	warm, err := store.List(bg, "AB3DE7FG", 0)
	require.NoError(t, err)
	require.Len(t, warm, 1)

	ctx, cancel := context.WithCancel(bg)
	durable.cancel = cancel
	_, err = store.Put(ctx, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:2"})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	got, err := store.List(bg, "AB3DE7FG", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "data:2", got[0].DataURL)
}

func TestConcurrentWriteDoesNotLeaveStaleCache(t *testing.T) {
	cache := newRedisCache(t)
	opts := storage.DefaultOptions()
	durable := &writeDuringList{Store: memory.NewStore(opts)}
	store := NewStore(durable, cache, opts, nil)
	ctx := context.Background()

	_, err := store.Put(ctx, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:1"})
	require.NoError(t, err)

	durable.onList = func() {
		_, err := store.Put(ctx, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:2"})
		require.NoError(t, err)
	}

	// 这次读取拿到的是写入之前的列表，不能被缓存下来
	stale, err := store.List(ctx, "AB3DE7FG", 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	_, err = cache.GetCachedInbox(ctx, "AB3DE7FG")
	assert.ErrorIs(t, err, redis.ErrCacheMiss)

	fresh, err := store.List(ctx, "AB3DE7FG", 0)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "data:2", fresh[0].DataURL)
}
