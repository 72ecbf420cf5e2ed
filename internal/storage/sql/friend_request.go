package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

// CreateFriendRequest 创建好友请求，重复的待处理请求直接返回已有记录
func (s *Store) CreateFriendRequest(ctx context.Context, req *domain.FriendRequest) (*domain.FriendRequest, bool, error) {
	if err := domain.ValidateFriendRequest(req); err != nil {
		return nil, false, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var result domain.FriendRequest
	duplicate := false

	err := s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("from_code = ? AND to_code = ? AND status = ?",
			req.FromCode, req.ToCode, domain.FriendRequestPending).
			First(&result).Error
		if err == nil {
			duplicate = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		result = *req
		result.ID = 0
		result.Status = domain.FriendRequestPending
		if result.CreatedAt == 0 {
			result.CreatedAt = domain.NowMillis()
		}
		return tx.Create(&result).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create friend request: %w", err)
	}
	return &result, duplicate, nil
}

// GetFriendRequest 根据 ID 获取好友请求
func (s *Store) GetFriendRequest(ctx context.Context, id int64) (*domain.FriendRequest, error) {
	var req domain.FriendRequest
	if err := s.gormDB.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrFriendRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// ListIncomingFriendRequests 返回发给 code 的待处理请求
func (s *Store) ListIncomingFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error) {
	return s.listFriendRequests(ctx, "to_code = ? AND status = ?", code, domain.FriendRequestPending, limit)
}

// ListAcceptedFriendRequests 返回 code 发出且已被接受的请求
func (s *Store) ListAcceptedFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error) {
	return s.listFriendRequests(ctx, "from_code = ? AND status = ?", code, domain.FriendRequestAccepted, limit)
}

// UpdateFriendRequestStatus 更新好友请求状态
func (s *Store) UpdateFriendRequestStatus(ctx context.Context, id int64, status domain.FriendRequestStatus) error {
	result := s.gormDB.WithContext(ctx).
		Model(&domain.FriendRequest{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrFriendRequestNotFound
	}
	return nil
}

func (s *Store) listFriendRequests(ctx context.Context, query, code string, status domain.FriendRequestStatus, limit int) ([]domain.FriendRequest, error) {
	limit = storage.ClampLimit(limit, storage.FriendRequestListLimit)

	items := make([]domain.FriendRequest, 0)
	err := s.gormDB.WithContext(ctx).
		Where(query, code, status).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
