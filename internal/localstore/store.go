package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"doodledrop/backend/internal/domain"
)

var (
	// ErrContactNotFound 好友不存在
	ErrContactNotFound = errors.New("contact not found")
	// ErrDoodleNotFound 作品不存在
	ErrDoodleNotFound = errors.New("doodle not found")
	// ErrEntryNotFound 收件箱条目不存在
	ErrEntryNotFound = errors.New("inbox entry not found")
)

// Store 本地状态文件。所有修改串行执行，
// 先落盘成功再替换内存中的状态，写盘失败时两者都保持不变。
type Store struct {
	mu    sync.Mutex
	path  string
	state State

	writeFile func(path string, data []byte, perm os.FileMode) error
}

// Open 读取状态文件，不存在时创建并生成本机邀请码。
// 旧文件缺少邀请码或中继地址时补齐并立即写回，保证下次打开得到同一个邀请码
func Open(path string) (*Store, error) {
	s := &Store{path: path, writeFile: atomicWriteFile}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
		}
		st = st.clone()
		dirty := false
		if st.Code == "" {
			st.Code = domain.NewCode().String()
			dirty = true
		}
		if st.RelayURL == "" {
			st.RelayURL = DefaultRelayURL
			dirty = true
		}
		if dirty {
			if err := s.persist(st); err != nil {
				return nil, err
			}
		}
		s.state = st
		return s, nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state dir: %w", err)
		}
		st := newState()
		if err := s.persist(st); err != nil {
			return nil, err
		}
		s.state = st
		return s, nil
	default:
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}
}

// Path 状态文件路径
func (s *Store) Path() string {
	return s.path
}

// Snapshot 返回当前状态的深拷贝
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// update 在副本上执行 fn，落盘成功后才替换内存状态
func (s *Store) update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) persist(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.writeFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// RecordOutgoing 把新作品放到最前面，超过 OutboxLimit 时丢弃最旧的
func (s *Store) RecordOutgoing(d domain.Doodle) (domain.Doodle, error) {
	if d.DataURL == "" {
		return domain.Doodle{}, &domain.ValidationError{Field: "dataUrl"}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt == 0 {
		d.CreatedAt = domain.NowMillis()
	}

	err := s.update(func(st *State) error {
		st.Outbox = append([]domain.Doodle{d}, st.Outbox...)
		if len(st.Outbox) > OutboxLimit {
			st.Outbox = st.Outbox[:OutboxLimit]
		}
		return nil
	})
	if err != nil {
		return domain.Doodle{}, err
	}
	return d, nil
}

// RemoveOutgoing 删除一幅已画作品
func (s *Store) RemoveOutgoing(id string) error {
	return s.update(func(st *State) error {
		for i, d := range st.Outbox {
			if d.ID == id {
				st.Outbox = append(st.Outbox[:i], st.Outbox[i+1:]...)
				return nil
			}
		}
		return ErrDoodleNotFound
	})
}

// ReplaceInbox 用服务端返回的列表整体覆盖本地收件箱
func (s *Store) ReplaceInbox(entries []domain.MailboxEntry) error {
	return s.update(func(st *State) error {
		inbox := append(make([]domain.MailboxEntry, 0, len(entries)), entries...)
		if len(inbox) > InboxLimit {
			inbox = inbox[:InboxLimit]
		}
		st.Inbox = inbox
		return nil
	})
}

// RemoveInboxEntry 从本地收件箱删除一条记录，不影响服务端
func (s *Store) RemoveInboxEntry(id int64) error {
	return s.update(func(st *State) error {
		for i, e := range st.Inbox {
			if e.ID == id {
				st.Inbox = append(st.Inbox[:i], st.Inbox[i+1:]...)
				return nil
			}
		}
		return ErrEntryNotFound
	})
}

// SetProfile 设置显示名称
func (s *Store) SetProfile(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &domain.ValidationError{Field: "name"}
	}
	return s.update(func(st *State) error {
		st.Name = name
		return nil
	})
}

// SetRelayURL 设置中继服务地址
func (s *Store) SetRelayURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return &domain.ValidationError{Field: "relayUrl"}
	}
	return s.update(func(st *State) error {
		st.RelayURL = url
		return nil
	})
}

// AddContact 添加好友。已有相同邀请码的好友时直接返回已有记录。
func (s *Store) AddContact(name, code, phone string) (Contact, error) {
	name = strings.TrimSpace(name)
	code = domain.NormalizeCode(code)
	if name == "" {
		return Contact{}, &domain.ValidationError{Field: "name"}
	}
	if code == "" {
		return Contact{}, &domain.ValidationError{Field: "code"}
	}

	var added Contact
	err := s.update(func(st *State) error {
		for _, c := range st.Contacts {
			if c.Code == code {
				added = c
				return nil
			}
		}
		added = Contact{
			ID:    uuid.NewString(),
			Name:  name,
			Code:  code,
			Phone: strings.TrimSpace(phone),
		}
		st.Contacts = append(st.Contacts, added)
		return nil
	})
	if err != nil {
		return Contact{}, err
	}
	return added, nil
}

// RemoveContact 删除好友
func (s *Store) RemoveContact(id string) error {
	return s.update(func(st *State) error {
		for i, c := range st.Contacts {
			if c.ID == id {
				st.Contacts = append(st.Contacts[:i], st.Contacts[i+1:]...)
				return nil
			}
		}
		return ErrContactNotFound
	})
}

// atomicWriteFile 先写同目录的临时文件并 fsync，再重命名覆盖目标文件
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
