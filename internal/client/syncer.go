package client

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/localstore"
)

// Syncer 负责本地状态与中继之间的推送和拉取。
// 没有自动重试，失败时由调用方决定是否再试。
type Syncer struct {
	store  *localstore.Store
	relay  *RelayClient
	logger *zap.Logger
}

// NewSyncer 创建同步器
func NewSyncer(store *localstore.Store, relay *RelayClient, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{store: store, relay: relay, logger: logger}
}

// Send 把作品投递给好友。只读取本地状态，不做任何修改。
// 作品 ID 作为 deliveryId，去重窗口内重试同一作品不会产生重复条目。
func (s *Syncer) Send(ctx context.Context, contactRef string, doodle domain.Doodle) (Receipt, error) {
	st := s.store.Snapshot()

	contact, ok := st.FindContact(contactRef)
	if !ok || strings.TrimSpace(contact.Code) == "" {
		return Receipt{}, &NoDestinationError{Contact: contactRef}
	}
	if doodle.DataURL == "" {
		return Receipt{}, &domain.ValidationError{Field: "dataUrl"}
	}

	receipt, err := s.relay.Deliver(ctx, DeliverRequest{
		ToCode:     contact.Code,
		FromCode:   st.Code,
		FromName:   st.Name,
		DataURL:    doodle.DataURL,
		DeliveryID: doodle.ID,
	})
	if err != nil {
		s.logger.Warn("delivery failed",
			zap.String("to_code", contact.Code),
			zap.Error(err),
		)
		return Receipt{}, &DeliveryError{Err: err}
	}

	s.logger.Info("doodle delivered",
		zap.String("to_code", contact.Code),
		zap.Int64("id", receipt.ID),
		zap.Bool("duplicate", receipt.Duplicate),
	)
	return receipt, nil
}

// Sync 拉取本机邀请码的收件箱并整体替换本地镜像。
// 任何失败都返回 *SyncError，本地收件箱保持原样。
func (s *Syncer) Sync(ctx context.Context) ([]domain.MailboxEntry, error) {
	code := s.store.Snapshot().Code

	entries, err := s.relay.Inbox(ctx, code)
	if err != nil {
		s.logger.Warn("inbox sync failed", zap.String("code", code), zap.Error(err))
		return nil, &SyncError{Err: err}
	}
	if err := s.store.ReplaceInbox(entries); err != nil {
		return nil, &SyncError{Err: err}
	}

	s.logger.Debug("inbox synced", zap.String("code", code), zap.Int("items", len(entries)))
	return s.store.Snapshot().Inbox, nil
}

// RequestFriend 以本机身份向 toCode 发送好友请求
func (s *Syncer) RequestFriend(ctx context.Context, toCode string) (FriendRequestReceipt, error) {
	st := s.store.Snapshot()
	if strings.TrimSpace(st.Name) == "" {
		return FriendRequestReceipt{}, &domain.ValidationError{Field: "fromName"}
	}
	toCode = domain.NormalizeCode(toCode)
	if toCode == "" {
		return FriendRequestReceipt{}, &domain.ValidationError{Field: "toCode"}
	}
	return s.relay.CreateFriendRequest(ctx, st.Code, st.Name, toCode)
}

// FriendRequests 拉取好友请求。对方已接受的请求会把对方加入本地好友。
func (s *Syncer) FriendRequests(ctx context.Context) (FriendRequestLists, error) {
	lists, err := s.relay.ListFriendRequests(ctx, s.store.Snapshot().Code)
	if err != nil {
		return FriendRequestLists{}, err
	}

	for _, req := range lists.Accepted {
		if _, known := s.store.Snapshot().FindContact(req.ToCode); known {
			continue
		}
		if _, err := s.store.AddContact(req.ToCode, req.ToCode, ""); err != nil {
			return lists, fmt.Errorf("failed to add contact %s: %w", req.ToCode, err)
		}
		s.logger.Info("friend request accepted, contact added", zap.String("code", req.ToCode))
	}
	return lists, nil
}

// RespondFriendRequest 接受或拒绝一条待处理的好友请求。
// 接受时把请求方加入本地好友并返回该好友。
func (s *Syncer) RespondFriendRequest(ctx context.Context, id int64, accept bool) (*localstore.Contact, error) {
	code := s.store.Snapshot().Code

	lists, err := s.relay.ListFriendRequests(ctx, code)
	if err != nil {
		return nil, err
	}
	var pending *domain.FriendRequest
	for i := range lists.Incoming {
		if lists.Incoming[i].ID == id {
			pending = &lists.Incoming[i]
			break
		}
	}
	if pending == nil {
		return nil, ErrFriendRequestNotFound
	}

	status := domain.FriendRequestDeclined
	if accept {
		status = domain.FriendRequestAccepted
	}
	if err := s.relay.RespondFriendRequest(ctx, id, status, code); err != nil {
		return nil, err
	}
	if !accept {
		return nil, nil
	}

	contact, err := s.store.AddContact(pending.FromName, pending.FromCode, "")
	if err != nil {
		return nil, fmt.Errorf("failed to add contact: %w", err)
	}
	return &contact, nil
}
