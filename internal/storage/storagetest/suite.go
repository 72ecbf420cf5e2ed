// Package storagetest 提供各存储后端共用的行为测试。
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

// Factory 按给定保留策略创建一个全新的存储实例
type Factory func(t *testing.T, opts storage.Options) storage.Store

// RunStoreTests 对 Store 实现执行完整的行为测试
func RunStoreTests(t *testing.T, newStore Factory) {
	t.Run("Mailbox", func(t *testing.T) { RunMailboxTests(t, newStore) })
	t.Run("FriendRequests", func(t *testing.T) { RunFriendRequestTests(t, newStore) })
}

// RunMailboxTests 校验邮箱写入、读取与保留策略
func RunMailboxTests(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("写入后读取", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())

		entry := &domain.MailboxEntry{
			ToCode:   "AB3DE7FG",
			FromCode: "QWERTY23",
			FromName: "Avery",
			DataURL:  "data:image/png;base64,Zm9v",
		}
		id, err := store.Put(ctx, entry)
		require.NoError(t, err)
		assert.Positive(t, id)
		assert.Equal(t, id, entry.ID)
		assert.NotZero(t, entry.CreatedAt)

		items, err := store.List(ctx, "AB3DE7FG", storage.DefaultInboxLimit)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, id, items[0].ID)
		assert.Equal(t, "Avery", items[0].FromName)
		assert.Equal(t, "QWERTY23", items[0].FromCode)
		assert.Equal(t, "data:image/png;base64,Zm9v", items[0].DataURL)

		other, err := store.List(ctx, "ZZ9ZZ9ZZ", storage.DefaultInboxLimit)
		require.NoError(t, err)
		assert.NotNil(t, other)
		assert.Empty(t, other)
	})

	t.Run("缺少必填字段时拒绝写入", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())

		_, err := store.Put(ctx, &domain.MailboxEntry{ToCode: "", DataURL: "data:,x"})
		assert.True(t, domain.IsValidationError(err))

		_, err = store.Put(ctx, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: ""})
		assert.True(t, domain.IsValidationError(err))

		count, err := store.Count(ctx, "AB3DE7FG")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("ID 严格递增", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())

		var last int64
		for i := 0; i < 10; i++ {
			id, err := store.Put(ctx, &domain.MailboxEntry{
				ToCode:  fmt.Sprintf("CODE%04d", i%3),
				DataURL: "data:,x",
			})
			require.NoError(t, err)
			assert.Greater(t, id, last)
			last = id
		}
	})

	t.Run("列表最多返回 24 条且按时间倒序", func(t *testing.T) {
		for _, trim := range []bool{true, false} {
			t.Run(fmt.Sprintf("trim=%v", trim), func(t *testing.T) {
				store := newStore(t, storage.Options{InboxLimit: storage.DefaultInboxLimit, TrimOnWrite: trim})

				base := domain.NowMillis()
				for i := 0; i < 30; i++ {
					_, err := store.Put(ctx, &domain.MailboxEntry{
						ToCode:    "AB3DE7FG",
						DataURL:   fmt.Sprintf("data:,%d", i),
						CreatedAt: base + int64(i),
					})
					require.NoError(t, err)
				}

				items, err := store.List(ctx, "AB3DE7FG", storage.DefaultInboxLimit)
				require.NoError(t, err)
				require.Len(t, items, 24)
				for i, item := range items {
					assert.Equal(t, base+int64(29-i), item.CreatedAt)
					assert.Equal(t, fmt.Sprintf("data:,%d", 29-i), item.DataURL)
				}

				count, err := store.Count(ctx, "AB3DE7FG")
				require.NoError(t, err)
				if trim {
					assert.Equal(t, 24, count)
				} else {
					assert.Equal(t, 30, count)
				}
			})
		}
	})

	t.Run("按时间而非插入顺序裁剪", func(t *testing.T) {
		store := newStore(t, storage.Options{InboxLimit: 3, TrimOnWrite: true})

		for _, ts := range []int64{500, 100, 400, 300, 200} {
			_, err := store.Put(ctx, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:,x", CreatedAt: ts})
			require.NoError(t, err)
		}

		items, err := store.List(ctx, "AB3DE7FG", 0)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, int64(500), items[0].CreatedAt)
		assert.Equal(t, int64(400), items[1].CreatedAt)
		assert.Equal(t, int64(300), items[2].CreatedAt)
	})

	t.Run("不同邀请码互不影响", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())

		_, err := store.Put(ctx, &domain.MailboxEntry{ToCode: "AAAAAAAA", DataURL: "data:,a"})
		require.NoError(t, err)
		_, err = store.Put(ctx, &domain.MailboxEntry{ToCode: "BBBBBBBB", DataURL: "data:,b"})
		require.NoError(t, err)

		items, err := store.List(ctx, "AAAAAAAA", 0)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "data:,a", items[0].DataURL)
	})

	t.Run("并发写入不丢失", func(t *testing.T) {
		store := newStore(t, storage.Options{InboxLimit: 1000, TrimOnWrite: true})

		const writers = 8
		const perWriter = 20

		var wg sync.WaitGroup
		ids := make(chan int64, writers*perWriter)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					id, err := store.Put(ctx, &domain.MailboxEntry{
						ToCode:  "AB3DE7FG",
						DataURL: fmt.Sprintf("data:,%d-%d", w, i),
					})
					if assert.NoError(t, err) {
						ids <- id
					}
				}
			}(w)
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]struct{})
		for id := range ids {
			seen[id] = struct{}{}
		}
		assert.Len(t, seen, writers*perWriter)

		count, err := store.Count(ctx, "AB3DE7FG")
		require.NoError(t, err)
		assert.Equal(t, writers*perWriter, count)
	})

	t.Run("健康检查", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())
		assert.NoError(t, store.Health())
	})
}

// RunFriendRequestTests 校验好友请求的创建、去重与状态流转
func RunFriendRequestTests(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("创建并去重", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())

		req, dup, err := store.CreateFriendRequest(ctx, &domain.FriendRequest{
			FromCode: "AAAAAAAA", FromName: "Avery", ToCode: "BBBBBBBB",
		})
		require.NoError(t, err)
		assert.False(t, dup)
		assert.Positive(t, req.ID)
		assert.Equal(t, domain.FriendRequestPending, req.Status)

		again, dup, err := store.CreateFriendRequest(ctx, &domain.FriendRequest{
			FromCode: "AAAAAAAA", FromName: "Avery", ToCode: "BBBBBBBB",
		})
		require.NoError(t, err)
		assert.True(t, dup)
		assert.Equal(t, req.ID, again.ID)
	})

	t.Run("缺少字段", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())

		_, _, err := store.CreateFriendRequest(ctx, &domain.FriendRequest{FromCode: "AAAAAAAA", ToCode: "BBBBBBBB"})
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("接受后出现在发起方的已接受列表", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())

		req, _, err := store.CreateFriendRequest(ctx, &domain.FriendRequest{
			FromCode: "AAAAAAAA", FromName: "Avery", ToCode: "BBBBBBBB",
		})
		require.NoError(t, err)

		incoming, err := store.ListIncomingFriendRequests(ctx, "BBBBBBBB", 0)
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		assert.Equal(t, req.ID, incoming[0].ID)

		require.NoError(t, store.UpdateFriendRequestStatus(ctx, req.ID, domain.FriendRequestAccepted))

		incoming, err = store.ListIncomingFriendRequests(ctx, "BBBBBBBB", 0)
		require.NoError(t, err)
		assert.Empty(t, incoming)

		accepted, err := store.ListAcceptedFriendRequests(ctx, "AAAAAAAA", 0)
		require.NoError(t, err)
		require.Len(t, accepted, 1)
		assert.Equal(t, domain.FriendRequestAccepted, accepted[0].Status)

		got, err := store.GetFriendRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.FriendRequestAccepted, got.Status)
	})

	t.Run("不存在的请求", func(t *testing.T) {
		store := newStore(t, storage.DefaultOptions())

		_, err := store.GetFriendRequest(ctx, 4242)
		assert.ErrorIs(t, err, storage.ErrFriendRequestNotFound)

		err = store.UpdateFriendRequestStatus(ctx, 4242, domain.FriendRequestDeclined)
		assert.ErrorIs(t, err, storage.ErrFriendRequestNotFound)
	})
}
