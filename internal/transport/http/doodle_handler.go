package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/service"
)

// DoodleHandler 投递与收件箱接口
type DoodleHandler struct {
	relay  *service.RelayService
	logger *zap.Logger
}

// NewDoodleHandler 创建处理器
func NewDoodleHandler(relay *service.RelayService, logger *zap.Logger) *DoodleHandler {
	return &DoodleHandler{relay: relay, logger: logger}
}

type deliverRequest struct {
	ToCode     string `json:"toCode"`
	FromCode   string `json:"fromCode"`
	FromName   string `json:"fromName"`
	DataURL    string `json:"dataUrl"`
	DeliveryID string `json:"deliveryId"`
}

// inboxItem 收件箱列表项，不包含收件人邀请码
type inboxItem struct {
	ID        int64  `json:"id"`
	FromCode  string `json:"fromCode"`
	FromName  string `json:"fromName"`
	DataURL   string `json:"dataUrl"`
	CreatedAt int64  `json:"createdAt"`
}

// createDoodle POST /api/doodles
func (h *DoodleHandler) createDoodle(c *gin.Context) {
	var req deliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isBodyTooLarge(err) {
			Fail(c, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		// 无法解析的请求体按缺少字段处理
		Fail(c, http.StatusBadRequest, MsgMissingDeliverFields)
		return
	}

	result, err := h.relay.Deliver(c.Request.Context(), service.DeliverInput{
		ToCode:     req.ToCode,
		FromCode:   req.FromCode,
		FromName:   req.FromName,
		DataURL:    req.DataURL,
		DeliveryID: req.DeliveryID,
	})
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			Fail(c, http.StatusBadRequest, MsgMissingDeliverFields)
		case errors.Is(err, service.ErrDeliveryInProgress):
			Fail(c, http.StatusConflict, MsgDeliveryInProgress)
		default:
			h.logger.Error("failed to store doodle", zap.Error(err))
			_ = c.Error(err)
			Fail(c, http.StatusInternalServerError, MsgStoreFailed)
		}
		return
	}

	fields := gin.H{"id": result.ID, "createdAt": result.CreatedAt}
	if result.Duplicate {
		fields["duplicate"] = true
	}
	OK(c, fields)
}

// getInbox GET /api/inbox/:code
func (h *DoodleHandler) getInbox(c *gin.Context) {
	entries, err := h.relay.Fetch(c.Request.Context(), c.Param("code"))
	if err != nil {
		if domain.IsValidationError(err) {
			Fail(c, http.StatusBadRequest, MsgMissingCode)
			return
		}
		h.logger.Error("failed to load inbox", zap.Error(err))
		_ = c.Error(err)
		Fail(c, http.StatusInternalServerError, MsgLoadInboxFailed)
		return
	}

	items := make([]inboxItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, inboxItem{
			ID:        e.ID,
			FromCode:  e.FromCode,
			FromName:  e.FromName,
			DataURL:   e.DataURL,
			CreatedAt: e.CreatedAt,
		})
	}
	OK(c, gin.H{"items": items})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
