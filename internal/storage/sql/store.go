package sql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

// trimSQL 删除某邀请码下超出上限的旧记录。
// 内层多包一层派生表，MySQL 不允许在 IN 子查询里直接使用 LIMIT。
const trimSQL = `DELETE FROM doodles WHERE to_code = ? AND id NOT IN (
	SELECT id FROM (
		SELECT id FROM doodles WHERE to_code = ? ORDER BY created_at DESC, id DESC LIMIT ?
	) AS keep_rows
)`

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
	opts       storage.Options

	// writeMu 保证同一进程内写入串行，插入与裁剪在同一事务内完成
	writeMu sync.Mutex
}

// NewStore 创建SQL数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
	opts storage.Options,
) (*Store, error) {
	// 验证驱动类型
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	// 打开数据库连接
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	if driverName == "mysql" {
		dialector = mysql.New(mysql.Config{Conn: db})
	} else {
		dialector = postgres.New(postgres.Config{Conn: db})
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
		opts:       opts.Normalize(),
	}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Put 在事务内插入记录并按需裁剪
func (s *Store) Put(ctx context.Context, entry *domain.MailboxEntry) (int64, error) {
	if err := domain.ValidateEntry(entry); err != nil {
		return 0, err
	}

	stored := *entry
	stored.ID = 0
	if stored.CreatedAt == 0 {
		stored.CreatedAt = domain.NowMillis()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&stored).Error; err != nil {
			return err
		}
		if s.opts.TrimOnWrite {
			return tx.Exec(trimSQL, stored.ToCode, stored.ToCode, s.opts.InboxLimit).Error
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert doodle: %w", err)
	}

	entry.ID = stored.ID
	entry.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

// List 返回最新的若干条记录
func (s *Store) List(ctx context.Context, code string, limit int) ([]domain.MailboxEntry, error) {
	limit = storage.ClampLimit(limit, s.opts.InboxLimit)

	items := make([]domain.MailboxEntry, 0)
	err := s.gormDB.WithContext(ctx).
		Where("to_code = ?", code).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list doodles: %w", err)
	}
	return items, nil
}

// Count 返回该邀请码保存的条目数
func (s *Store) Count(ctx context.Context, code string) (int, error) {
	var count int64
	err := s.gormDB.WithContext(ctx).
		Model(&domain.MailboxEntry{}).
		Where("to_code = ?", code).
		Count(&count).Error
	return int(count), err
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.MailboxEntry{},
		&domain.FriendRequest{},
	)
}
