package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ugorji/go/codec"
	"go.etcd.io/bbolt"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

// 桶名
var (
	doodlesBucket        = []byte("doodles")         // id -> MailboxEntry
	mailboxesBucket      = []byte("mailboxes")       // toCode -> 子桶(createdAt|id -> id)
	friendRequestsBucket = []byte("friend_requests") // id -> FriendRequest
)

var jsonHandle codec.JsonHandle

// Store 基于 bbolt 的本地持久化存储（默认后端）
//
// bbolt 同一时刻只允许一个写事务，天然满足单写者约束，
// NextSequence 在写事务内分配，因此 ID 严格递增。
type Store struct {
	db   *bbolt.DB
	opts storage.Options
}

// NewStore 打开（或创建）数据文件并初始化桶
func NewStore(path string, opts storage.Options) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{doodlesBucket, mailboxesBucket, friendRequestsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, opts: opts.Normalize()}, nil
}

// Put 追加一条涂鸦记录
func (s *Store) Put(ctx context.Context, entry *domain.MailboxEntry) (int64, error) {
	if err := domain.ValidateEntry(entry); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stored := *entry
	if stored.CreatedAt == 0 {
		stored.CreatedAt = domain.NowMillis()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		doodles := tx.Bucket(doodlesBucket)
		seq, err := doodles.NextSequence()
		if err != nil {
			return err
		}
		stored.ID = int64(seq)

		data, err := encode(&stored)
		if err != nil {
			return err
		}
		if err := doodles.Put(itob(stored.ID), data); err != nil {
			return err
		}

		mailbox, err := tx.Bucket(mailboxesBucket).CreateBucketIfNotExists([]byte(stored.ToCode))
		if err != nil {
			return err
		}
		if err := mailbox.Put(indexKey(stored.CreatedAt, stored.ID), itob(stored.ID)); err != nil {
			return err
		}

		if s.opts.TrimOnWrite {
			return trim(doodles, mailbox, s.opts.InboxLimit)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put doodle: %w", err)
	}

	entry.ID = stored.ID
	entry.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

// List 通过倒序游标读取最新的若干条记录
func (s *Store) List(ctx context.Context, code string, limit int) ([]domain.MailboxEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = storage.ClampLimit(limit, s.opts.InboxLimit)

	items := make([]domain.MailboxEntry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		mailbox := tx.Bucket(mailboxesBucket).Bucket([]byte(code))
		if mailbox == nil {
			return nil
		}
		doodles := tx.Bucket(doodlesBucket)

		c := mailbox.Cursor()
		for k, v := c.Last(); k != nil && len(items) < limit; k, v = c.Prev() {
			data := doodles.Get(v)
			if data == nil {
				continue
			}
			var entry domain.MailboxEntry
			if err := decode(data, &entry); err != nil {
				return err
			}
			items = append(items, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list doodles: %w", err)
	}
	return items, nil
}

// Count 返回该邀请码保存的条目数
func (s *Store) Count(ctx context.Context, code string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		mailbox := tx.Bucket(mailboxesBucket).Bucket([]byte(code))
		if mailbox == nil {
			return nil
		}
		count = countKeys(mailbox)
		return nil
	})
	return count, err
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Health 检查数据库是否可读
func (s *Store) Health() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(doodlesBucket) == nil {
			return fmt.Errorf("bucket %s missing", doodlesBucket)
		}
		return nil
	})
}

// trim 删除超出上限的旧条目（索引键按时间升序，从最旧的开始删）
func trim(doodles, mailbox *bbolt.Bucket, limit int) error {
	excess := countKeys(mailbox) - limit
	if excess <= 0 {
		return nil
	}

	var stale [][]byte
	c := mailbox.Cursor()
	for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}

	for _, k := range stale {
		if err := doodles.Delete(k[8:]); err != nil {
			return err
		}
		if err := mailbox.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// countKeys 用游标计数，写事务中未落盘的修改也能被统计到
func countKeys(b *bbolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// indexKey 由创建时间和 ID 组成，保证同一邀请码下按时间有序
func indexKey(createdAt, id int64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(createdAt))
	binary.BigEndian.PutUint64(key[8:], uint64(id))
	return key
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func encode(v interface{}) ([]byte, error) {
	var data []byte
	if err := codec.NewEncoderBytes(&data, &jsonHandle).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return data, nil
}

func decode(data []byte, v interface{}) error {
	if err := codec.NewDecoderBytes(data, &jsonHandle).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
