package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"doodledrop/backend/internal/cache"
	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/monitoring"
	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/memory"
)

// MockMailboxRepository 模拟邮箱存储
type MockMailboxRepository struct {
	mock.Mock
}

func (m *MockMailboxRepository) Put(ctx context.Context, entry *domain.MailboxEntry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMailboxRepository) List(ctx context.Context, code string, limit int) ([]domain.MailboxEntry, error) {
	args := m.Called(ctx, code, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MailboxEntry), args.Error(1)
}

func (m *MockMailboxRepository) Count(ctx context.Context, code string) (int, error) {
	args := m.Called(ctx, code)
	return args.Int(0), args.Error(1)
}

func newRelay(t *testing.T) (*RelayService, *memory.Store) {
	t.Helper()
	store := memory.NewStore(storage.DefaultOptions())
	return NewRelayService(store, RelayOptions{}, nil), store
}

func TestRelayService_DeliverAndFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("投递后可以读取", func(t *testing.T) {
		relay, _ := newRelay(t)

		res, err := relay.Deliver(ctx, DeliverInput{
			ToCode:   "AB3DE7FG",
			FromCode: "QWERTY23",
			FromName: "Avery",
			DataURL:  "data:image/png;base64,Zm9v",
		})
		require.NoError(t, err)
		assert.Positive(t, res.ID)
		assert.NotZero(t, res.CreatedAt)
		assert.False(t, res.Duplicate)

		items, err := relay.Fetch(ctx, "AB3DE7FG")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, res.ID, items[0].ID)
		assert.Equal(t, "Avery", items[0].FromName)
		assert.Equal(t, "QWERTY23", items[0].FromCode)

		empty, err := relay.Fetch(ctx, "ZZ9ZZ9ZZ")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("邀请码大小写与空白归一化", func(t *testing.T) {
		relay, _ := newRelay(t)

		_, err := relay.Deliver(ctx, DeliverInput{ToCode: "  ab3de7fg ", DataURL: "data:x"})
		require.NoError(t, err)

		items, err := relay.Fetch(ctx, "AB3DE7FG")
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("缺少收件人或载荷时拒绝且不写入", func(t *testing.T) {
		relay, store := newRelay(t)

		testCases := []struct {
			name  string
			input DeliverInput
			field string
		}{
			{name: "空收件人", input: DeliverInput{ToCode: "", DataURL: "data:x"}, field: "toCode"},
			{name: "空白收件人", input: DeliverInput{ToCode: "   ", DataURL: "data:x"}, field: "toCode"},
			{name: "空载荷", input: DeliverInput{ToCode: "AB3DE7FG"}, field: "dataUrl"},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := relay.Deliver(ctx, tc.input)
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tc.field, ve.Field)
			})
		}

		n, err := store.Count(ctx, "AB3DE7FG")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("空邀请码读取失败", func(t *testing.T) {
		relay, _ := newRelay(t)
		_, err := relay.Fetch(ctx, " ")
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("30 次投递只返回最新 24 条", func(t *testing.T) {
		relay, _ := newRelay(t)

		for i := 0; i < 30; i++ {
			_, err := relay.Deliver(ctx, DeliverInput{ToCode: "AB3DE7FG", DataURL: fmt.Sprintf("data:%d", i)})
			require.NoError(t, err)
		}

		items, err := relay.Fetch(ctx, "AB3DE7FG")
		require.NoError(t, err)
		require.Len(t, items, 24)
		assert.Equal(t, "data:29", items[0].DataURL)
		assert.Equal(t, "data:6", items[23].DataURL)
		for i := 1; i < len(items); i++ {
			assert.Greater(t, items[i-1].ID, items[i].ID)
		}
	})

	t.Run("未去重时重复投递产生两条记录", func(t *testing.T) {
		relay, _ := newRelay(t)
		in := DeliverInput{ToCode: "AB3DE7FG", DataURL: "data:x", DeliveryID: "same"}

		first, err := relay.Deliver(ctx, in)
		require.NoError(t, err)
		second, err := relay.Deliver(ctx, in)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestRelayService_Dedupe(t *testing.T) {
	ctx := context.Background()

	newDedupingRelay := func(t *testing.T, repo storage.MailboxRepository) (*RelayService, *monitoring.Metrics) {
		lc := cache.NewLocalCache(time.Minute, 0)
		t.Cleanup(lc.Close)
		metrics := monitoring.NewMetrics()
		return NewRelayService(repo, RelayOptions{
			DedupeWindow: 10 * time.Minute,
			Deduper:      lc,
			Metrics:      metrics,
		}, nil), metrics
	}

	t.Run("相同 deliveryId 返回原回执", func(t *testing.T) {
		store := memory.NewStore(storage.DefaultOptions())
		relay, metrics := newDedupingRelay(t, store)
		in := DeliverInput{ToCode: "AB3DE7FG", DataURL: "data:x", DeliveryID: "d-1"}

		first, err := relay.Deliver(ctx, in)
		require.NoError(t, err)
		second, err := relay.Deliver(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)
		assert.True(t, second.Duplicate)

		n, _ := store.Count(ctx, "AB3DE7FG")
		assert.Equal(t, 1, n)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DeliveriesTotal.WithLabelValues(monitoring.DeliveryDuplicate)))
	})

	t.Run("不同收件人的相同 id 互不影响", func(t *testing.T) {
		store := memory.NewStore(storage.DefaultOptions())
		relay, _ := newDedupingRelay(t, store)

		a, err := relay.Deliver(ctx, DeliverInput{ToCode: "AB3DE7FG", DataURL: "data:x", DeliveryID: "d-1"})
		require.NoError(t, err)
		b, err := relay.Deliver(ctx, DeliverInput{ToCode: "ZZ9ZZ9ZZ", DataURL: "data:x", DeliveryID: "d-1"})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("并发重复投递只写一次", func(t *testing.T) {
		store := memory.NewStore(storage.DefaultOptions())
		relay, _ := newDedupingRelay(t, store)

		var wg sync.WaitGroup
		var ok int32
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := relay.Deliver(ctx, DeliverInput{ToCode: "AB3DE7FG", DataURL: "data:x", DeliveryID: "burst"})
				if err == nil {
					atomic.AddInt32(&ok, 1)
				} else {
					assert.ErrorIs(t, err, ErrDeliveryInProgress)
				}
			}()
		}
		wg.Wait()

		n, _ := store.Count(ctx, "AB3DE7FG")
		assert.Equal(t, 1, n)
		assert.GreaterOrEqual(t, ok, int32(1))
	})

	t.Run("写入失败后可以用同一 id 重试", func(t *testing.T) {
		repo := new(MockMailboxRepository)
		repo.On("Put", mock.Anything, mock.Anything).Return(int64(0), errors.New("disk full")).Once()
		repo.On("Put", mock.Anything, mock.Anything).Return(int64(5), nil).Once()
		relay, _ := newDedupingRelay(t, repo)
		in := DeliverInput{ToCode: "AB3DE7FG", DataURL: "data:x", DeliveryID: "retry"}

		_, err := relay.Deliver(ctx, in)
		require.Error(t, err)
		assert.False(t, domain.IsValidationError(err))

		res, err := relay.Deliver(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.ID)
		assert.False(t, res.Duplicate)
		repo.AssertExpectations(t)
	})
}

func TestRelayService_StoreFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(MockMailboxRepository)
	repo.On("Put", mock.Anything, mock.Anything).Return(int64(0), errors.New("connection reset"))
	repo.On("List", mock.Anything, "AB3DE7FG", storage.DefaultInboxLimit).Return(nil, errors.New("connection reset"))

	metrics := monitoring.NewMetrics()
	relay := NewRelayService(repo, RelayOptions{Metrics: metrics}, nil)

	_, err := relay.Deliver(ctx, DeliverInput{ToCode: "AB3DE7FG", DataURL: "data:x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, err = relay.Fetch(ctx, "AB3DE7FG")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DeliveriesTotal.WithLabelValues(monitoring.DeliveryFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchesTotal.WithLabelValues(monitoring.FetchFailed)))
	repo.AssertExpectations(t)
}

func TestReceiptEncoding(t *testing.T) {
	r, ok := decodeReceipt(encodeReceipt(&DeliverResult{ID: 12, CreatedAt: 1700000000123}))
	require.True(t, ok)
	assert.Equal(t, int64(12), r.ID)
	assert.Equal(t, int64(1700000000123), r.CreatedAt)

	for _, bad := range []string{"", "12", "x:1", "1:y"} {
		_, ok := decodeReceipt(bad)
		assert.False(t, ok, bad)
	}
}
