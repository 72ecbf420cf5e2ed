package client

import (
	"errors"
	"fmt"
)

// ErrNoDestination 所选好友不存在或没有邀请码
var ErrNoDestination = errors.New("no destination")

// ErrFriendRequestNotFound 待处理列表中找不到该好友请求
var ErrFriendRequestNotFound = errors.New("friend request not found")

// NetworkError 无法连接中继服务
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError 中继返回非成功状态码或 ok:false
type ServerError struct {
	Status  int
	Message string
	Body    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("relay returned %d", e.Status)
}

// SyncError 拉取收件箱失败，本地缓存保持不变
type SyncError struct {
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed: %v", e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// DeliveryError 投递失败，本地状态没有变化，可以重试
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Retryable 投递失败总是可以重试
func (e *DeliveryError) Retryable() bool { return true }

// NoDestinationError 所选好友不存在或邀请码为空
type NoDestinationError struct {
	Contact string
}

func (e *NoDestinationError) Error() string {
	return fmt.Sprintf("no destination for contact %q", e.Contact)
}

// Is 使 errors.Is(err, ErrNoDestination) 成立
func (e *NoDestinationError) Is(target error) bool {
	return target == ErrNoDestination
}
