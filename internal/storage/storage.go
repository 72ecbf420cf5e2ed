package storage

import (
	"context"
	"errors"

	"doodledrop/backend/internal/domain"
)

// DefaultInboxLimit 单个邀请码的收件列表最多返回的条目数
const DefaultInboxLimit = 24

// FriendRequestListLimit 好友请求列表的返回上限
const FriendRequestListLimit = 50

var (
	// ErrFriendRequestNotFound 好友请求不存在
	ErrFriendRequestNotFound = errors.New("friend request not found")
	// ErrStoreClosed 存储已关闭
	ErrStoreClosed = errors.New("store closed")
)

// Options 各存储后端共用的保留策略
type Options struct {
	// InboxLimit 每个邀请码保留/返回的最大条目数
	InboxLimit int
	// TrimOnWrite 为 true 时在写入事务内删除超出上限的旧条目；
	// 为 false 时只在读取时截断
	TrimOnWrite bool
}

// DefaultOptions 返回默认保留策略（写入时裁剪，上限 24）
func DefaultOptions() Options {
	return Options{
		InboxLimit:  DefaultInboxLimit,
		TrimOnWrite: true,
	}
}

// Normalize 修正非法的配置值
func (o Options) Normalize() Options {
	if o.InboxLimit <= 0 {
		o.InboxLimit = DefaultInboxLimit
	}
	return o
}

// MailboxRepository 定义邮箱条目的存取操作。
type MailboxRepository interface {
	// Put 追加一条记录并返回分配的自增 ID，同时回写 entry.ID。
	// 邀请码或载荷为空时返回 *domain.ValidationError 且不写入。
	Put(ctx context.Context, entry *domain.MailboxEntry) (int64, error)
	// List 按创建时间倒序返回最多 limit 条记录；未知邀请码返回空切片。
	List(ctx context.Context, code string, limit int) ([]domain.MailboxEntry, error)
	// Count 返回该邀请码当前保存的条目数
	Count(ctx context.Context, code string) (int, error)
}

// FriendRequestRepository 定义好友请求的存取操作。
type FriendRequestRepository interface {
	// CreateFriendRequest 创建好友请求。若已存在相同方向的待处理请求，
	// 返回已有请求且 duplicate 为 true。
	CreateFriendRequest(ctx context.Context, req *domain.FriendRequest) (existing *domain.FriendRequest, duplicate bool, err error)
	GetFriendRequest(ctx context.Context, id int64) (*domain.FriendRequest, error)
	// ListIncomingFriendRequests 发往 code 的待处理请求
	ListIncomingFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error)
	// ListAcceptedFriendRequests 由 code 发出且已被接受的请求
	ListAcceptedFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error)
	UpdateFriendRequestStatus(ctx context.Context, id int64, status domain.FriendRequestStatus) error
}

// Store 定义完整的存储接口。
type Store interface {
	MailboxRepository
	FriendRequestRepository

	// 工具方法
	Close() error
	Health() error
}

// ClampLimit 把调用方传入的 limit 约束在 (0, max] 范围内
func ClampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
