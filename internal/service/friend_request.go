package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/monitoring"
	"doodledrop/backend/internal/storage"
)

var (
	ErrSelfFriendRequest = errors.New("cannot send a friend request to yourself")
	ErrInvalidStatus     = errors.New("status must be accepted or declined")
	ErrNotRecipient      = errors.New("only the recipient can respond to a friend request")
)

// FriendRequestService 处理通过邀请码互加好友的流程
type FriendRequestService struct {
	repo    storage.FriendRequestRepository
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewFriendRequestService 创建好友请求服务
func NewFriendRequestService(repo storage.FriendRequestRepository, metrics *monitoring.Metrics, logger *zap.Logger) *FriendRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FriendRequestService{repo: repo, metrics: metrics, logger: logger}
}

// CreateFriendRequestInput 创建好友请求的输入
type CreateFriendRequestInput struct {
	FromCode string
	FromName string
	ToCode   string
}

// Create 发送好友请求。已有相同方向的待处理请求时返回它，duplicate 为 true。
func (s *FriendRequestService) Create(ctx context.Context, input CreateFriendRequestInput) (*domain.FriendRequest, bool, error) {
	req := &domain.FriendRequest{
		FromCode: domain.NormalizeCode(input.FromCode),
		FromName: input.FromName,
		ToCode:   domain.NormalizeCode(input.ToCode),
	}
	if err := domain.ValidateFriendRequest(req); err != nil {
		return nil, false, err
	}
	if req.FromCode == req.ToCode {
		return nil, false, ErrSelfFriendRequest
	}

	created, duplicate, err := s.repo.CreateFriendRequest(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("create friend request: %w", err)
	}

	if duplicate {
		s.record("duplicate")
	} else {
		s.record("created")
		s.logger.Debug("friend request created",
			zap.Int64("id", created.ID),
			zap.String("from_code", created.FromCode),
			zap.String("to_code", created.ToCode),
		)
	}
	return created, duplicate, nil
}

// FriendRequestLists 某邀请码的好友请求视图
type FriendRequestLists struct {
	Incoming []domain.FriendRequest // 发给自己、待处理
	Accepted []domain.FriendRequest // 自己发出、已被接受
}

// List 返回邀请码的待处理请求和已被接受的请求
func (s *FriendRequestService) List(ctx context.Context, code string) (*FriendRequestLists, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, &domain.ValidationError{Field: "code"}
	}

	incoming, err := s.repo.ListIncomingFriendRequests(ctx, code, storage.FriendRequestListLimit)
	if err != nil {
		return nil, fmt.Errorf("list incoming friend requests: %w", err)
	}
	accepted, err := s.repo.ListAcceptedFriendRequests(ctx, code, storage.FriendRequestListLimit)
	if err != nil {
		return nil, fmt.Errorf("list accepted friend requests: %w", err)
	}
	return &FriendRequestLists{Incoming: incoming, Accepted: accepted}, nil
}

// Respond 接受或拒绝好友请求。responderCode 非空时必须是请求的收件人。
func (s *FriendRequestService) Respond(ctx context.Context, id int64, status domain.FriendRequestStatus, responderCode string) (*domain.FriendRequest, error) {
	if status != domain.FriendRequestAccepted && status != domain.FriendRequestDeclined {
		return nil, ErrInvalidStatus
	}

	req, err := s.repo.GetFriendRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	responderCode = domain.NormalizeCode(responderCode)
	if responderCode != "" && responderCode != req.ToCode {
		return nil, ErrNotRecipient
	}

	if err := s.repo.UpdateFriendRequestStatus(ctx, id, status); err != nil {
		return nil, err
	}
	req.Status = status
	s.record(string(status))
	return req, nil
}

func (s *FriendRequestService) record(action string) {
	if s.metrics != nil {
		s.metrics.RecordFriendRequest(action)
	}
}
