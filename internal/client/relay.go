package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"doodledrop/backend/internal/domain"
)

// maxResponseBytes 单个响应体的读取上限（24 条涂鸦加上 JSON 包装）
const maxResponseBytes = 256 << 20

// RelayClient 中继服务的 HTTP 客户端
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayClient 创建客户端，httpClient 为 nil 时使用 http.DefaultClient
func NewRelayClient(baseURL string, httpClient *http.Client) *RelayClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RelayClient{baseURL: NormalizeBaseURL(baseURL), httpClient: httpClient}
}

// BaseURL 规范化后的服务地址
func (c *RelayClient) BaseURL() string {
	return c.baseURL
}

// NormalizeBaseURL 去掉首尾空白和一个结尾的 "/"
func NormalizeBaseURL(raw string) string {
	return strings.TrimSuffix(strings.TrimSpace(raw), "/")
}

// DeliverRequest 投递请求体
type DeliverRequest struct {
	ToCode     string `json:"toCode"`
	FromCode   string `json:"fromCode"`
	FromName   string `json:"fromName"`
	DataURL    string `json:"dataUrl"`
	DeliveryID string `json:"deliveryId,omitempty"`
}

// Receipt 中继返回的投递回执
type Receipt struct {
	ID        int64 `json:"id"`
	CreatedAt int64 `json:"createdAt"`
	Duplicate bool  `json:"duplicate,omitempty"`
}

// FriendRequestReceipt 创建好友请求的回执
type FriendRequestReceipt struct {
	ID        int64 `json:"id"`
	CreatedAt int64 `json:"createdAt,omitempty"`
	Duplicate bool  `json:"duplicate,omitempty"`
}

// FriendRequestLists 待处理与已接受的好友请求
type FriendRequestLists struct {
	Incoming []domain.FriendRequest `json:"incoming"`
	Accepted []domain.FriendRequest `json:"accepted"`
}

// envelope 所有接口共用的响应包装
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Deliver POST /api/doodles
func (c *RelayClient) Deliver(ctx context.Context, req DeliverRequest) (Receipt, error) {
	var out Receipt
	if err := c.do(ctx, http.MethodPost, "/api/doodles", req, &out); err != nil {
		return Receipt{}, err
	}
	return out, nil
}

// Inbox GET /api/inbox/:code
func (c *RelayClient) Inbox(ctx context.Context, code string) ([]domain.MailboxEntry, error) {
	var out struct {
		Items []domain.MailboxEntry `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/inbox/"+url.PathEscape(code), nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []domain.MailboxEntry{}
	}
	return out.Items, nil
}

// CreateFriendRequest POST /api/friend-requests
func (c *RelayClient) CreateFriendRequest(ctx context.Context, fromCode, fromName, toCode string) (FriendRequestReceipt, error) {
	body := map[string]string{"fromCode": fromCode, "fromName": fromName, "toCode": toCode}
	var out FriendRequestReceipt
	if err := c.do(ctx, http.MethodPost, "/api/friend-requests", body, &out); err != nil {
		return FriendRequestReceipt{}, err
	}
	return out, nil
}

// ListFriendRequests GET /api/friend-requests/:code
func (c *RelayClient) ListFriendRequests(ctx context.Context, code string) (FriendRequestLists, error) {
	var out FriendRequestLists
	if err := c.do(ctx, http.MethodGet, "/api/friend-requests/"+url.PathEscape(code), nil, &out); err != nil {
		return FriendRequestLists{}, err
	}
	return out, nil
}

// RespondFriendRequest PATCH /api/friend-requests/:id
func (c *RelayClient) RespondFriendRequest(ctx context.Context, id int64, status domain.FriendRequestStatus, code string) error {
	body := map[string]string{"status": string(status), "code": code}
	return c.do(ctx, http.MethodPatch, "/api/friend-requests/"+strconv.FormatInt(id, 10), body, nil)
}

// do 发送请求并解析 {ok,error} 包装。连接失败返回 *NetworkError，
// 非 2xx 或 ok:false 返回 *ServerError，未配置中继地址返回 relayUrl 校验错误。
func (c *RelayClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	if c.baseURL == "" {
		return &domain.ValidationError{Field: "relayUrl"}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{Status: resp.StatusCode, Message: env.Error, Body: string(raw)}
	}
	if decodeErr != nil {
		return fmt.Errorf("malformed response from %s: %w", path, decodeErr)
	}
	if !env.OK {
		return &ServerError{Status: resp.StatusCode, Message: env.Error, Body: string(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("malformed response from %s: %w", path, err)
		}
	}
	return nil
}
