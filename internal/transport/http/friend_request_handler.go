package httptransport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/service"
	"doodledrop/backend/internal/storage"
)

// FriendRequestHandler 好友请求接口
type FriendRequestHandler struct {
	service *service.FriendRequestService
	logger  *zap.Logger
}

// NewFriendRequestHandler 创建处理器
func NewFriendRequestHandler(svc *service.FriendRequestService, logger *zap.Logger) *FriendRequestHandler {
	return &FriendRequestHandler{service: svc, logger: logger}
}

type createFriendRequestBody struct {
	FromCode string `json:"fromCode"`
	FromName string `json:"fromName"`
	ToCode   string `json:"toCode"`
}

type respondFriendRequestBody struct {
	Status string `json:"status"`
	Code   string `json:"code"`
}

// create POST /api/friend-requests
func (h *FriendRequestHandler) create(c *gin.Context) {
	var body createFriendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		Fail(c, http.StatusBadRequest, MsgMissingFriendFields)
		return
	}

	req, duplicate, err := h.service.Create(c.Request.Context(), service.CreateFriendRequestInput{
		FromCode: body.FromCode,
		FromName: body.FromName,
		ToCode:   body.ToCode,
	})
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			Fail(c, http.StatusBadRequest, MsgMissingFriendFields)
		case errors.Is(err, service.ErrSelfFriendRequest):
			Fail(c, http.StatusBadRequest, MsgSelfFriendRequest)
		default:
			h.fail(c, err)
		}
		return
	}

	if duplicate {
		OK(c, gin.H{"id": req.ID, "duplicate": true})
		return
	}
	OK(c, gin.H{"id": req.ID, "createdAt": req.CreatedAt})
}

// list GET /api/friend-requests/:code
func (h *FriendRequestHandler) list(c *gin.Context) {
	lists, err := h.service.List(c.Request.Context(), c.Param("code"))
	if err != nil {
		if domain.IsValidationError(err) {
			Fail(c, http.StatusBadRequest, MsgMissingCode)
			return
		}
		h.fail(c, err)
		return
	}

	OK(c, gin.H{
		"incoming": nonNil(lists.Incoming),
		"accepted": nonNil(lists.Accepted),
	})
}

// respond PATCH /api/friend-requests/:id
func (h *FriendRequestHandler) respond(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		Fail(c, http.StatusNotFound, MsgFriendRequestMissing)
		return
	}

	var body respondFriendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		Fail(c, http.StatusBadRequest, MsgInvalidFriendStatus)
		return
	}

	status := domain.FriendRequestStatus(body.Status)
	req, err := h.service.Respond(c.Request.Context(), id, status, body.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			Fail(c, http.StatusBadRequest, MsgInvalidFriendStatus)
		case errors.Is(err, storage.ErrFriendRequestNotFound):
			Fail(c, http.StatusNotFound, MsgFriendRequestMissing)
		case errors.Is(err, service.ErrNotRecipient):
			Fail(c, http.StatusForbidden, MsgNotAuthorized)
		default:
			h.fail(c, err)
		}
		return
	}

	OK(c, gin.H{"id": req.ID, "status": req.Status})
}

func (h *FriendRequestHandler) fail(c *gin.Context, err error) {
	h.logger.Error("friend request operation failed", zap.Error(err))
	_ = c.Error(err)
	Fail(c, http.StatusInternalServerError, MsgFriendRequestFailed)
}

func nonNil(items []domain.FriendRequest) []domain.FriendRequest {
	if items == nil {
		return []domain.FriendRequest{}
	}
	return items
}
