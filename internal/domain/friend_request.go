package domain

import "sort"

// FriendRequestStatus 好友请求状态
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

// Valid 检查状态值是否合法
func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestPending, FriendRequestAccepted, FriendRequestDeclined:
		return true
	}
	return false
}

// FriendRequest 好友请求（通过邀请码互相添加）
type FriendRequest struct {
	ID        int64               `json:"id" gorm:"primaryKey;autoIncrement"`
	FromCode  string              `json:"fromCode" gorm:"column:from_code;type:varchar(32);index:idx_fr_from_code;not null"`
	FromName  string              `json:"fromName" gorm:"column:from_name;type:varchar(255);not null"`
	ToCode    string              `json:"toCode" gorm:"column:to_code;type:varchar(32);index:idx_fr_to_code;not null"`
	Status    FriendRequestStatus `json:"status" gorm:"column:status;type:varchar(16);not null;default:pending"`
	CreatedAt int64               `json:"createdAt" gorm:"column:created_at;autoCreateTime:false;not null"`
}

// TableName 数据表名
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// SortFriendRequests 按创建时间倒序排列
func SortFriendRequests(items []FriendRequest) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt > items[j].CreatedAt
		}
		return items[i].ID > items[j].ID
	})
}
