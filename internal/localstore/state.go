package localstore

import (
	"strings"

	"doodledrop/backend/internal/domain"
)

const (
	// OutboxLimit 本地保留的已画作品上限
	OutboxLimit = 12
	// InboxLimit 本地收件箱镜像上限，与服务端列表上限一致
	InboxLimit = 24
	// DefaultRelayURL 未配置中继地址时使用的默认值
	DefaultRelayURL = "http://localhost:3000"
)

// Contact 本地好友
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Code  string `json:"code"`
	Phone string `json:"phone,omitempty"`
}

// State 一次安装对应的全部本地数据
type State struct {
	Code     string                `json:"code"`
	Name     string                `json:"name"`
	RelayURL string                `json:"relayUrl"`
	Contacts []Contact             `json:"contacts"`
	Outbox   []domain.Doodle       `json:"outbox"`
	Inbox    []domain.MailboxEntry `json:"inbox"`
}

func newState() State {
	return State{
		Code:     domain.NewCode().String(),
		RelayURL: DefaultRelayURL,
		Contacts: []Contact{},
		Outbox:   []domain.Doodle{},
		Inbox:    []domain.MailboxEntry{},
	}
}

// clone 深拷贝，修改副本不会影响原状态
func (s State) clone() State {
	out := s
	out.Contacts = append(make([]Contact, 0, len(s.Contacts)), s.Contacts...)
	out.Outbox = append(make([]domain.Doodle, 0, len(s.Outbox)), s.Outbox...)
	out.Inbox = append(make([]domain.MailboxEntry, 0, len(s.Inbox)), s.Inbox...)
	return out
}

// FindContact 依次按 ID、名称（不区分大小写）、邀请码查找好友
func (s State) FindContact(ref string) (Contact, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Contact{}, false
	}
	for _, c := range s.Contacts {
		if c.ID == ref {
			return c, true
		}
	}
	for _, c := range s.Contacts {
		if strings.EqualFold(c.Name, ref) {
			return c, true
		}
	}
	code := domain.NormalizeCode(ref)
	for _, c := range s.Contacts {
		if c.Code == code {
			return c, true
		}
	}
	return Contact{}, false
}

// FindOutgoing 按 ID 查找已画作品
func (s State) FindOutgoing(id string) (domain.Doodle, bool) {
	for _, d := range s.Outbox {
		if d.ID == id {
			return d, true
		}
	}
	return domain.Doodle{}, false
}
