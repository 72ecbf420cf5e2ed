package memory

import (
	"context"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

// CreateFriendRequest 创建好友请求，重复的待处理请求直接返回已有记录。
func (s *Store) CreateFriendRequest(ctx context.Context, req *domain.FriendRequest) (*domain.FriendRequest, bool, error) {
	if err := domain.ValidateFriendRequest(req); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.friendRequests {
		if existing.FromCode == req.FromCode && existing.ToCode == req.ToCode &&
			existing.Status == domain.FriendRequestPending {
			copied := *existing
			return &copied, true, nil
		}
	}

	s.nextRequestID++
	stored := *req
	stored.ID = s.nextRequestID
	stored.Status = domain.FriendRequestPending
	if stored.CreatedAt == 0 {
		stored.CreatedAt = domain.NowMillis()
	}
	s.friendRequests[stored.ID] = &stored

	copied := stored
	return &copied, false, nil
}

// GetFriendRequest 根据 ID 获取好友请求。
func (s *Store) GetFriendRequest(ctx context.Context, id int64) (*domain.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.friendRequests[id]
	if !ok {
		return nil, storage.ErrFriendRequestNotFound
	}
	copied := *req
	return &copied, nil
}

// ListIncomingFriendRequests 返回发给 code 的待处理请求。
func (s *Store) ListIncomingFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error) {
	return s.filterFriendRequests(limit, func(r *domain.FriendRequest) bool {
		return r.ToCode == code && r.Status == domain.FriendRequestPending
	}), nil
}

// ListAcceptedFriendRequests 返回 code 发出且已被接受的请求。
func (s *Store) ListAcceptedFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error) {
	return s.filterFriendRequests(limit, func(r *domain.FriendRequest) bool {
		return r.FromCode == code && r.Status == domain.FriendRequestAccepted
	}), nil
}

// UpdateFriendRequestStatus 更新好友请求状态。
func (s *Store) UpdateFriendRequestStatus(ctx context.Context, id int64, status domain.FriendRequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.friendRequests[id]
	if !ok {
		return storage.ErrFriendRequestNotFound
	}
	req.Status = status
	return nil
}

func (s *Store) filterFriendRequests(limit int, match func(*domain.FriendRequest) bool) []domain.FriendRequest {
	limit = storage.ClampLimit(limit, storage.FriendRequestListLimit)

	s.mu.RLock()
	result := make([]domain.FriendRequest, 0)
	for _, r := range s.friendRequests {
		if match(r) {
			result = append(result, *r)
		}
	}
	s.mu.RUnlock()

	domain.SortFriendRequests(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
