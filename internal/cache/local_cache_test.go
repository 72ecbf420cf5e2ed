package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*LocalCache, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := NewLocalCache(ttl, 0)
	c.now = clock.Now
	return c, clock
}

func TestLocalCache(t *testing.T) {
	t.Run("写入后读取", func(t *testing.T) {
		c, _ := newTestCache(time.Minute)
		c.Set("k", "v", 0)

		v, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, "v", v)
	})

	t.Run("过期后读取不到", func(t *testing.T) {
		c, clock := newTestCache(time.Minute)
		c.Set("k", "v", 0)

		clock.Advance(time.Minute)
		_, ok := c.Get("k")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("SetIfAbsent 只在缺失或过期时写入", func(t *testing.T) {
		c, clock := newTestCache(time.Minute)

		assert.True(t, c.SetIfAbsent("k", 1, 0))
		assert.False(t, c.SetIfAbsent("k", 2, 0))

		clock.Advance(2 * time.Minute)
		assert.True(t, c.SetIfAbsent("k", 3, 0))

		v, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, 3, v)
	})

	t.Run("并发抢占只有一个成功", func(t *testing.T) {
		c, _ := newTestCache(time.Minute)

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if c.SetIfAbsent("delivery", true, 0) {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})

	t.Run("清理过期条目", func(t *testing.T) {
		c, clock := newTestCache(time.Second)
		c.Set("a", 1, 0)
		c.Set("b", 2, time.Hour)

		clock.Advance(time.Minute)
		c.purgeExpired()
		assert.Equal(t, 1, c.Len())
	})
}

func TestClaimDelivery(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	ctx := context.Background()

	first, receipt, err := c.ClaimDelivery(ctx, "d-1", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Empty(t, receipt)

	inFlight, receipt, err := c.ClaimDelivery(ctx, "d-1", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, inFlight)
	assert.Empty(t, receipt)

	require.NoError(t, c.CompleteDelivery(ctx, "d-1", "7:1700000000000", 10*time.Minute))
	again, receipt, err := c.ClaimDelivery(ctx, "d-1", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, "7:1700000000000", receipt)

	clock.Advance(11 * time.Minute)
	afterWindow, _, _ := c.ClaimDelivery(ctx, "d-1", 10*time.Minute)
	assert.True(t, afterWindow)

	require.NoError(t, c.ReleaseDelivery(ctx, "d-1"))
	afterRelease, _, _ := c.ClaimDelivery(ctx, "d-1", 10*time.Minute)
	assert.True(t, afterRelease)

	c.Close()
	c.Close()
}
