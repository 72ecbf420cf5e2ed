package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 客户端依赖这些文案判断错误类型，不要修改
const (
	MsgMissingDeliverFields = "Missing toCode or dataUrl"
	MsgStoreFailed          = "Failed to store doodle"
	MsgMissingCode          = "Missing code"
	MsgLoadInboxFailed      = "Failed to load inbox"
	MsgBodyTooLarge         = "Request body too large"
	MsgDeliveryInProgress   = "Delivery in progress"

	MsgMissingFriendFields  = "Missing fromCode, fromName, or toCode"
	MsgSelfFriendRequest    = "Cannot send a request to yourself"
	MsgInvalidFriendStatus  = "Status must be 'accepted' or 'declined'"
	MsgFriendRequestMissing = "Request not found"
	MsgNotAuthorized        = "Not authorized"
	MsgFriendRequestFailed  = "Failed to process friend request"
)

// OK 成功响应，fields 与 ok:true 合并为顶层字段
func OK(c *gin.Context, fields gin.H) {
	body := gin.H{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Fail 错误响应 {ok:false,error:msg}
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"ok":    false,
		"error": msg,
	})
}
