package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/monitoring"
	"doodledrop/backend/internal/storage"
)

// ErrDeliveryInProgress 相同 deliveryId 的投递仍在处理中
var ErrDeliveryInProgress = errors.New("delivery with this id is in progress")

// DeliveryDeduper 投递去重窗口。单实例用本地缓存，多实例用 Redis。
type DeliveryDeduper interface {
	ClaimDelivery(ctx context.Context, key string, window time.Duration) (claimed bool, receipt string, err error)
	CompleteDelivery(ctx context.Context, key, receipt string, window time.Duration) error
	ReleaseDelivery(ctx context.Context, key string) error
}

// RelayOptions 中继服务参数
type RelayOptions struct {
	InboxLimit   int
	DedupeWindow time.Duration   // 0 表示不去重
	Deduper      DeliveryDeduper // 为 nil 时忽略 deliveryId
	Metrics      *monitoring.Metrics
}

// DeliverInput 投递请求
type DeliverInput struct {
	ToCode     string
	FromCode   string
	FromName   string
	DataURL    string
	DeliveryID string // 可选，客户端生成的幂等标识
}

// DeliverResult 投递回执
type DeliverResult struct {
	ID        int64
	CreatedAt int64
	Duplicate bool // 命中去重窗口，未重复写入
}

// RelayService 按邀请码存取涂鸦。每次调用相互独立，唯一的共享状态在存储中。
type RelayService struct {
	store   storage.MailboxRepository
	opts    RelayOptions
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewRelayService 创建中继服务
func NewRelayService(store storage.MailboxRepository, opts RelayOptions, logger *zap.Logger) *RelayService {
	if opts.InboxLimit <= 0 {
		opts.InboxLimit = storage.DefaultInboxLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayService{
		store:   store,
		opts:    opts,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Deliver 把一幅涂鸦写入收件人的邮箱。
// 未提供 DeliveryID 时重复投递会产生重复条目。
func (s *RelayService) Deliver(ctx context.Context, input DeliverInput) (*DeliverResult, error) {
	entry := &domain.MailboxEntry{
		ToCode:   domain.NormalizeCode(input.ToCode),
		FromCode: domain.NormalizeCode(input.FromCode),
		FromName: input.FromName,
		DataURL:  input.DataURL,
	}
	if err := domain.ValidateEntry(entry); err != nil {
		s.recordDelivery(monitoring.DeliveryInvalid, 0)
		return nil, err
	}

	key := s.dedupeKey(entry.ToCode, input.DeliveryID)
	if key != "" {
		claimed, receipt, err := s.opts.Deduper.ClaimDelivery(ctx, key, s.opts.DedupeWindow)
		if err != nil {
			// 去重不可用时退化为普通投递
			s.logger.Warn("delivery dedupe unavailable", zap.String("delivery_id", input.DeliveryID), zap.Error(err))
			key = ""
		} else if !claimed {
			if result, ok := decodeReceipt(receipt); ok {
				s.recordDelivery(monitoring.DeliveryDuplicate, 0)
				return result, nil
			}
			return nil, ErrDeliveryInProgress
		}
	}

	id, err := s.store.Put(ctx, entry)
	if err != nil {
		if key != "" {
			if rerr := s.opts.Deduper.ReleaseDelivery(context.WithoutCancel(ctx), key); rerr != nil {
				s.logger.Warn("failed to release delivery id", zap.String("delivery_id", input.DeliveryID), zap.Error(rerr))
			}
		}
		s.recordDelivery(monitoring.DeliveryFailed, 0)
		return nil, fmt.Errorf("store doodle: %w", err)
	}

	result := &DeliverResult{ID: id, CreatedAt: entry.CreatedAt}
	if key != "" {
		if err := s.opts.Deduper.CompleteDelivery(context.WithoutCancel(ctx), key, encodeReceipt(result), s.opts.DedupeWindow); err != nil {
			s.logger.Warn("failed to record delivery receipt", zap.String("delivery_id", input.DeliveryID), zap.Error(err))
		}
	}

	s.recordDelivery(monitoring.DeliveryStored, len(entry.DataURL))
	s.logger.Debug("doodle delivered",
		zap.String("to_code", entry.ToCode),
		zap.Int64("id", id),
		zap.Int("bytes", len(entry.DataURL)),
	)
	return result, nil
}

// Fetch 返回邀请码最近的涂鸦，最新的在前。未知邀请码返回空列表。
func (s *RelayService) Fetch(ctx context.Context, code string) ([]domain.MailboxEntry, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		s.recordFetch(monitoring.FetchInvalid, 0)
		return nil, &domain.ValidationError{Field: "code"}
	}

	items, err := s.store.List(ctx, code, s.opts.InboxLimit)
	if err != nil {
		s.recordFetch(monitoring.FetchFailed, 0)
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	if items == nil {
		items = []domain.MailboxEntry{}
	}

	s.recordFetch(monitoring.FetchOK, len(items))
	return items, nil
}

// InboxLimit 返回列表上限
func (s *RelayService) InboxLimit() int {
	return s.opts.InboxLimit
}

func (s *RelayService) dedupeKey(toCode, deliveryID string) string {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" || s.opts.Deduper == nil || s.opts.DedupeWindow <= 0 {
		return ""
	}
	// 按收件人隔离，不同收件人的相同 id 互不影响
	return toCode + ":" + deliveryID
}

func (s *RelayService) recordDelivery(outcome string, size int) {
	if s.metrics != nil {
		s.metrics.RecordDelivery(outcome, size)
	}
}

func (s *RelayService) recordFetch(outcome string, items int) {
	if s.metrics != nil {
		s.metrics.RecordFetch(outcome, items)
	}
}

// 回执格式 "<id>:<createdAt>"
func encodeReceipt(r *DeliverResult) string {
	return strconv.FormatInt(r.ID, 10) + ":" + strconv.FormatInt(r.CreatedAt, 10)
}

func decodeReceipt(s string) (*DeliverResult, bool) {
	idPart, createdPart, ok := strings.Cut(s, ":")
	if !ok {
		return nil, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil, false
	}
	createdAt, err := strconv.ParseInt(createdPart, 10, 64)
	if err != nil {
		return nil, false
	}
	return &DeliverResult{ID: id, CreatedAt: createdAt, Duplicate: true}, true
}
