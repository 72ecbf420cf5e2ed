package domain

import (
	"sort"
	"time"
)

// Doodle 表示一幅涂鸦作品（客户端本地的作品，也是投递的载荷）
type Doodle struct {
	ID        string `json:"id"`
	DataURL   string `json:"dataUrl"`
	CreatedAt int64  `json:"createdAt"` // 毫秒时间戳
	FromCode  string `json:"fromCode,omitempty"`
	FromName  string `json:"fromName,omitempty"`
}

// MailboxEntry 服务端邮箱中的一条记录，插入后不可修改
type MailboxEntry struct {
	ID        int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	ToCode    string `json:"toCode,omitempty" gorm:"column:to_code;type:varchar(32);index:idx_doodles_to_code;not null"`
	FromCode  string `json:"fromCode" gorm:"column:from_code;type:varchar(32)"`
	FromName  string `json:"fromName" gorm:"column:from_name;type:varchar(255)"`
	DataURL   string `json:"dataUrl" gorm:"column:data_url;size:16777216;not null"` // MySQL 上为 mediumtext，PostgreSQL 上为 text
	CreatedAt int64  `json:"createdAt" gorm:"column:created_at;autoCreateTime:false;not null"`
}

// TableName 与原有数据表保持一致
func (MailboxEntry) TableName() string {
	return "doodles"
}

// NowMillis 返回当前的毫秒时间戳
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// SortEntries 按创建时间倒序排列，时间相同时按 ID 倒序
func SortEntries(entries []MailboxEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt != entries[j].CreatedAt {
			return entries[i].CreatedAt > entries[j].CreatedAt
		}
		return entries[i].ID > entries[j].ID
	})
}
