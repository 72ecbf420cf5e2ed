package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

// CreateFriendRequest 创建好友请求，重复的待处理请求直接返回已有记录
func (s *Store) CreateFriendRequest(ctx context.Context, req *domain.FriendRequest) (*domain.FriendRequest, bool, error) {
	if err := domain.ValidateFriendRequest(req); err != nil {
		return nil, false, err
	}

	var result domain.FriendRequest
	duplicate := false

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(friendRequestsBucket)

		err := bucket.ForEach(func(k, v []byte) error {
			if duplicate {
				return nil
			}
			var existing domain.FriendRequest
			if err := decode(v, &existing); err != nil {
				return err
			}
			if existing.FromCode == req.FromCode && existing.ToCode == req.ToCode &&
				existing.Status == domain.FriendRequestPending {
				result = existing
				duplicate = true
			}
			return nil
		})
		if err != nil || duplicate {
			return err
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		result = *req
		result.ID = int64(seq)
		result.Status = domain.FriendRequestPending
		if result.CreatedAt == 0 {
			result.CreatedAt = domain.NowMillis()
		}

		data, err := encode(&result)
		if err != nil {
			return err
		}
		return bucket.Put(itob(result.ID), data)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create friend request: %w", err)
	}
	return &result, duplicate, nil
}

// GetFriendRequest 根据 ID 获取好友请求
func (s *Store) GetFriendRequest(ctx context.Context, id int64) (*domain.FriendRequest, error) {
	var req domain.FriendRequest
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(friendRequestsBucket).Get(itob(id))
		if data == nil {
			return storage.ErrFriendRequestNotFound
		}
		return decode(data, &req)
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListIncomingFriendRequests 返回发给 code 的待处理请求
func (s *Store) ListIncomingFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error) {
	return s.scanFriendRequests(limit, func(r *domain.FriendRequest) bool {
		return r.ToCode == code && r.Status == domain.FriendRequestPending
	})
}

// ListAcceptedFriendRequests 返回 code 发出且已被接受的请求
func (s *Store) ListAcceptedFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error) {
	return s.scanFriendRequests(limit, func(r *domain.FriendRequest) bool {
		return r.FromCode == code && r.Status == domain.FriendRequestAccepted
	})
}

// UpdateFriendRequestStatus 更新好友请求状态
func (s *Store) UpdateFriendRequestStatus(ctx context.Context, id int64, status domain.FriendRequestStatus) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(friendRequestsBucket)
		data := bucket.Get(itob(id))
		if data == nil {
			return storage.ErrFriendRequestNotFound
		}

		var req domain.FriendRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		req.Status = status

		updated, err := encode(&req)
		if err != nil {
			return err
		}
		return bucket.Put(itob(id), updated)
	})
}

func (s *Store) scanFriendRequests(limit int, match func(*domain.FriendRequest) bool) ([]domain.FriendRequest, error) {
	limit = storage.ClampLimit(limit, storage.FriendRequestListLimit)

	result := make([]domain.FriendRequest, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(friendRequestsBucket).ForEach(func(k, v []byte) error {
			var req domain.FriendRequest
			if err := decode(v, &req); err != nil {
				return err
			}
			if match(&req) {
				result = append(result, req)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	domain.SortFriendRequests(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
