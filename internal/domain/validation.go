package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError 必填字段缺失或为空。
// 属于本地错误，立即返回，不会自动重试。
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s is required", e.Field)
}

// IsValidationError 判断错误链中是否包含 ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateEntry 检查邮箱条目的必填字段
func ValidateEntry(entry *MailboxEntry) error {
	if entry == nil {
		return &ValidationError{Field: "entry"}
	}
	if strings.TrimSpace(entry.ToCode) == "" {
		return &ValidationError{Field: "toCode"}
	}
	if entry.DataURL == "" {
		return &ValidationError{Field: "dataUrl"}
	}
	return nil
}

// ValidateFriendRequest 检查好友请求的必填字段
func ValidateFriendRequest(req *FriendRequest) error {
	if req == nil {
		return &ValidationError{Field: "request"}
	}
	if strings.TrimSpace(req.FromCode) == "" {
		return &ValidationError{Field: "fromCode"}
	}
	if strings.TrimSpace(req.FromName) == "" {
		return &ValidationError{Field: "fromName"}
	}
	if strings.TrimSpace(req.ToCode) == "" {
		return &ValidationError{Field: "toCode"}
	}
	return nil
}
