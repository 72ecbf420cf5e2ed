package memory

import (
	"context"
	"sync"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

// Store 使用内存保存涂鸦与好友请求，主要用于开发验证和测试。
type Store struct {
	mu     sync.RWMutex
	nextID int64
	byCode map[string][]*domain.MailboxEntry // toCode -> entries（按插入顺序）

	nextRequestID  int64
	friendRequests map[int64]*domain.FriendRequest

	opts   storage.Options
	closed bool
}

// NewStore 创建一个内存存储实例。
func NewStore(opts storage.Options) *Store {
	return &Store{
		byCode:         make(map[string][]*domain.MailboxEntry),
		friendRequests: make(map[int64]*domain.FriendRequest),
		opts:           opts.Normalize(),
	}
}

// Put 追加一条涂鸦记录。
func (s *Store) Put(ctx context.Context, entry *domain.MailboxEntry) (int64, error) {
	if err := domain.ValidateEntry(entry); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, storage.ErrStoreClosed
	}

	s.nextID++
	stored := *entry
	stored.ID = s.nextID
	if stored.CreatedAt == 0 {
		stored.CreatedAt = domain.NowMillis()
	}

	s.byCode[stored.ToCode] = append(s.byCode[stored.ToCode], &stored)
	if s.opts.TrimOnWrite {
		s.trimLocked(stored.ToCode)
	}

	entry.ID = stored.ID
	entry.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

// List 返回指定邀请码最新的若干条记录。
func (s *Store) List(ctx context.Context, code string, limit int) ([]domain.MailboxEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = storage.ClampLimit(limit, s.opts.InboxLimit)

	s.mu.RLock()
	items := s.byCode[code]
	result := make([]domain.MailboxEntry, 0, len(items))
	for _, e := range items {
		result = append(result, *e)
	}
	s.mu.RUnlock()

	domain.SortEntries(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count 返回该邀请码保存的条目数。
func (s *Store) Count(ctx context.Context, code string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCode[code]), nil
}

// trimLocked 只保留最新的 InboxLimit 条记录，调用方需持有写锁。
func (s *Store) trimLocked(code string) {
	items := s.byCode[code]
	if len(items) <= s.opts.InboxLimit {
		return
	}

	sorted := make([]domain.MailboxEntry, 0, len(items))
	for _, e := range items {
		sorted = append(sorted, *e)
	}
	domain.SortEntries(sorted)

	keep := make(map[int64]struct{}, s.opts.InboxLimit)
	for _, e := range sorted[:s.opts.InboxLimit] {
		keep[e.ID] = struct{}{}
	}

	kept := items[:0]
	for _, e := range items {
		if _, ok := keep[e.ID]; ok {
			kept = append(kept, e)
		}
	}
	// 清掉尾部引用，便于回收
	for i := len(kept); i < len(items); i++ {
		items[i] = nil
	}
	s.byCode[code] = kept
}

// Close 关闭存储。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Health 检查存储状态。
func (s *Store) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	return nil
}
