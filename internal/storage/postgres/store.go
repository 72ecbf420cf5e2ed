package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS doodles (
	id BIGSERIAL PRIMARY KEY,
	to_code TEXT NOT NULL,
	from_code TEXT NOT NULL DEFAULT '',
	from_name TEXT NOT NULL DEFAULT '',
	data_url TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_doodles_to_code ON doodles (to_code, created_at DESC, id DESC);
CREATE TABLE IF NOT EXISTS friend_requests (
	id BIGSERIAL PRIMARY KEY,
	from_code TEXT NOT NULL,
	from_name TEXT NOT NULL DEFAULT '',
	to_code TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_friend_requests_to_code ON friend_requests (to_code, status);
CREATE INDEX IF NOT EXISTS idx_friend_requests_from_code ON friend_requests (from_code, status);
`

const trimSQL = `DELETE FROM doodles WHERE to_code = $1 AND id NOT IN (
	SELECT id FROM doodles WHERE to_code = $1 ORDER BY created_at DESC, id DESC LIMIT $2
)`

// Store 基于 pgx 原生连接池的 PostgreSQL 存储。
// 写入时对邀请码加事务级 advisory lock，多个实例共享同一数据库也能保持裁剪正确。
type Store struct {
	client *Client
	opts   storage.Options
}

// NewStore 创建存储并确保表结构存在
func NewStore(ctx context.Context, client *Client, opts storage.Options) (*Store, error) {
	if _, err := client.Pool().Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{client: client, opts: opts.Normalize()}, nil
}

// Put 在事务内插入并裁剪
func (s *Store) Put(ctx context.Context, entry *domain.MailboxEntry) (int64, error) {
	if err := domain.ValidateEntry(entry); err != nil {
		return 0, err
	}

	createdAt := entry.CreatedAt
	if createdAt == 0 {
		createdAt = domain.NowMillis()
	}

	var id int64
	err := pgx.BeginFunc(ctx, s.client.Pool(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entry.ToCode); err != nil {
			return err
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO doodles (to_code, from_code, from_name, data_url, created_at)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			entry.ToCode, entry.FromCode, entry.FromName, entry.DataURL, createdAt,
		).Scan(&id)
		if err != nil {
			return err
		}
		if s.opts.TrimOnWrite {
			_, err = tx.Exec(ctx, trimSQL, entry.ToCode, s.opts.InboxLimit)
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert doodle: %w", err)
	}

	entry.ID = id
	entry.CreatedAt = createdAt
	return id, nil
}

// List 返回最新的若干条记录
func (s *Store) List(ctx context.Context, code string, limit int) ([]domain.MailboxEntry, error) {
	limit = storage.ClampLimit(limit, s.opts.InboxLimit)

	rows, err := s.client.Pool().Query(ctx,
		`SELECT id, to_code, from_code, from_name, data_url, created_at
		 FROM doodles WHERE to_code = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		code, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list doodles: %w", err)
	}
	defer rows.Close()

	items := make([]domain.MailboxEntry, 0, limit)
	for rows.Next() {
		var e domain.MailboxEntry
		if err := rows.Scan(&e.ID, &e.ToCode, &e.FromCode, &e.FromName, &e.DataURL, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// Count 返回该邀请码保存的条目数
func (s *Store) Count(ctx context.Context, code string) (int, error) {
	var n int
	err := s.client.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM doodles WHERE to_code = $1`, code).Scan(&n)
	return n, err
}

// CreateFriendRequest 创建好友请求，已有相同方向的待处理请求时返回该请求
func (s *Store) CreateFriendRequest(ctx context.Context, req *domain.FriendRequest) (*domain.FriendRequest, bool, error) {
	if err := domain.ValidateFriendRequest(req); err != nil {
		return nil, false, err
	}

	result := *req
	duplicate := false
	err := pgx.BeginFunc(ctx, s.client.Pool(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "fr:"+req.FromCode+":"+req.ToCode); err != nil {
			return err
		}
		err := tx.QueryRow(ctx,
			`SELECT id, from_code, from_name, to_code, status, created_at
			 FROM friend_requests WHERE from_code = $1 AND to_code = $2 AND status = $3 LIMIT 1`,
			req.FromCode, req.ToCode, domain.FriendRequestPending,
		).Scan(&result.ID, &result.FromCode, &result.FromName, &result.ToCode, &result.Status, &result.CreatedAt)
		if err == nil {
			duplicate = true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		result.Status = domain.FriendRequestPending
		if result.CreatedAt == 0 {
			result.CreatedAt = domain.NowMillis()
		}
		return tx.QueryRow(ctx,
			`INSERT INTO friend_requests (from_code, from_name, to_code, status, created_at)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			result.FromCode, result.FromName, result.ToCode, result.Status, result.CreatedAt,
		).Scan(&result.ID)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create friend request: %w", err)
	}
	return &result, duplicate, nil
}

// GetFriendRequest 根据 ID 获取好友请求
func (s *Store) GetFriendRequest(ctx context.Context, id int64) (*domain.FriendRequest, error) {
	var r domain.FriendRequest
	err := s.client.Pool().QueryRow(ctx,
		`SELECT id, from_code, from_name, to_code, status, created_at FROM friend_requests WHERE id = $1`, id,
	).Scan(&r.ID, &r.FromCode, &r.FromName, &r.ToCode, &r.Status, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListIncomingFriendRequests 发往 code 的待处理请求
func (s *Store) ListIncomingFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error) {
	return s.listFriendRequests(ctx, "to_code", code, domain.FriendRequestPending, limit)
}

// ListAcceptedFriendRequests 由 code 发出且已被接受的请求
func (s *Store) ListAcceptedFriendRequests(ctx context.Context, code string, limit int) ([]domain.FriendRequest, error) {
	return s.listFriendRequests(ctx, "from_code", code, domain.FriendRequestAccepted, limit)
}

// UpdateFriendRequestStatus 更新好友请求状态
func (s *Store) UpdateFriendRequestStatus(ctx context.Context, id int64, status domain.FriendRequestStatus) error {
	tag, err := s.client.Pool().Exec(ctx, `UPDATE friend_requests SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrFriendRequestNotFound
	}
	return nil
}

// column 只会是内部常量 to_code / from_code
func (s *Store) listFriendRequests(ctx context.Context, column, code string, status domain.FriendRequestStatus, limit int) ([]domain.FriendRequest, error) {
	limit = storage.ClampLimit(limit, storage.FriendRequestListLimit)

	rows, err := s.client.Pool().Query(ctx,
		`SELECT id, from_code, from_name, to_code, status, created_at FROM friend_requests
		 WHERE `+column+` = $1 AND status = $2 ORDER BY created_at DESC, id DESC LIMIT $3`,
		code, status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.FriendRequest, 0)
	for rows.Next() {
		var r domain.FriendRequest
		if err := rows.Scan(&r.ID, &r.FromCode, &r.FromName, &r.ToCode, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// Close 关闭连接池
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// Health 检查数据库连接
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.client.Ping(ctx)
}
