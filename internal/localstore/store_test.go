package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doodledrop/backend/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "doodle.json"))
	require.NoError(t, err)
	return s
}

func TestOpen(t *testing.T) {
	t.Run("首次打开生成邀请码并落盘", func(t *testing.T) {
		s := openTestStore(t)
		st := s.Snapshot()
		assert.True(t, domain.ValidCode(st.Code))
		assert.FileExists(t, s.Path())
	})

	t.Run("再次打开保留原邀请码", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doodle.json")
		first, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, first.SetProfile("Avery"))

		second, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, first.Snapshot().Code, second.Snapshot().Code)
		assert.Equal(t, "Avery", second.Snapshot().Name)
	})

	t.Run("缺少邀请码的旧文件补齐后写回", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doodle.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"name":"Avery"}`), 0o600))

		first, err := Open(path)
		require.NoError(t, err)
		code := first.Snapshot().Code
		require.True(t, domain.ValidCode(code))

		second, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, code, second.Snapshot().Code)
		assert.Equal(t, "Avery", second.Snapshot().Name)
	})

	t.Run("默认中继地址", func(t *testing.T) {
		s := openTestStore(t)
		assert.Equal(t, DefaultRelayURL, s.Snapshot().RelayURL)

		path := filepath.Join(t.TempDir(), "doodle.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"code":"AB3DE7FG","name":"Avery"}`), 0o600))
		loaded, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultRelayURL, loaded.Snapshot().RelayURL)
		assert.Equal(t, "AB3DE7FG", loaded.Snapshot().Code)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), DefaultRelayURL)
	})

	t.Run("文件损坏返回错误", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doodle.json")
		require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
		_, err := Open(path)
		assert.Error(t, err)
	})
}

func TestRecordOutgoing(t *testing.T) {
	t.Run("13 幅作品只保留最新 12 幅", func(t *testing.T) {
		s := openTestStore(t)
		for i := 0; i < 13; i++ {
			_, err := s.RecordOutgoing(domain.Doodle{
				ID:        fmt.Sprintf("d%02d", i),
				DataURL:   "data:image/png;base64,AA==",
				CreatedAt: int64(1000 + i),
			})
			require.NoError(t, err)
		}

		outbox := s.Snapshot().Outbox
		require.Len(t, outbox, OutboxLimit)
		assert.Equal(t, "d12", outbox[0].ID)
		assert.Equal(t, "d01", outbox[11].ID)
		_, found := s.Snapshot().FindOutgoing("d00")
		assert.False(t, found)
	})

	t.Run("自动补全 ID 与时间", func(t *testing.T) {
		s := openTestStore(t)
		d, err := s.RecordOutgoing(domain.Doodle{DataURL: "data:x"})
		require.NoError(t, err)
		assert.NotEmpty(t, d.ID)
		assert.NotZero(t, d.CreatedAt)
	})

	t.Run("空载荷被拒绝", func(t *testing.T) {
		s := openTestStore(t)
		_, err := s.RecordOutgoing(domain.Doodle{})
		assert.True(t, domain.IsValidationError(err))
		assert.Empty(t, s.Snapshot().Outbox)
	})

	t.Run("删除作品", func(t *testing.T) {
		s := openTestStore(t)
		d, err := s.RecordOutgoing(domain.Doodle{DataURL: "data:x"})
		require.NoError(t, err)
		require.NoError(t, s.RemoveOutgoing(d.ID))
		assert.Empty(t, s.Snapshot().Outbox)
		assert.ErrorIs(t, s.RemoveOutgoing(d.ID), ErrDoodleNotFound)
	})
}

func TestInbox(t *testing.T) {
	s := openTestStore(t)

	entries := []domain.MailboxEntry{
		{ID: 2, FromName: "B", DataURL: "data:b", CreatedAt: 2},
		{ID: 1, FromName: "A", DataURL: "data:a", CreatedAt: 1},
	}
	require.NoError(t, s.ReplaceInbox(entries))
	assert.Equal(t, entries, s.Snapshot().Inbox)

	require.NoError(t, s.RemoveInboxEntry(2))
	inbox := s.Snapshot().Inbox
	require.Len(t, inbox, 1)
	assert.Equal(t, int64(1), inbox[0].ID)
	assert.ErrorIs(t, s.RemoveInboxEntry(42), ErrEntryNotFound)

	require.NoError(t, s.ReplaceInbox(nil))
	assert.NotNil(t, s.Snapshot().Inbox)
	assert.Empty(t, s.Snapshot().Inbox)
}

func TestContacts(t *testing.T) {
	s := openTestStore(t)

	c, err := s.AddContact(" Sam ", "ab3de7fg", "")
	require.NoError(t, err)
	assert.Equal(t, "Sam", c.Name)
	assert.Equal(t, "AB3DE7FG", c.Code)

	again, err := s.AddContact("Samuel", "AB3DE7FG", "")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Len(t, s.Snapshot().Contacts, 1)

	for _, ref := range []string{c.ID, "sam", "ab3de7fg"} {
		found, ok := s.Snapshot().FindContact(ref)
		assert.True(t, ok, ref)
		assert.Equal(t, c.ID, found.ID)
	}

	_, err = s.AddContact("", "AB3DE7FG", "")
	assert.True(t, domain.IsValidationError(err))

	require.NoError(t, s.RemoveContact(c.ID))
	assert.ErrorIs(t, s.RemoveContact(c.ID), ErrContactNotFound)
}

func TestFailedWriteLeavesStateUnchanged(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.ReplaceInbox([]domain.MailboxEntry{{ID: 1, DataURL: "data:a", CreatedAt: 1}}))

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	snapshot := s.Snapshot()

	s.writeFile = func(string, []byte, os.FileMode) error {
		return errors.New("disk full")
	}

	_, err = s.RecordOutgoing(domain.Doodle{DataURL: "data:x"})
	require.Error(t, err)
	require.Error(t, s.ReplaceInbox(nil))
	require.Error(t, s.SetProfile("Avery"))

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, snapshot, s.Snapshot())
}

func TestSnapshotIsCopy(t *testing.T) {
	s := openTestStore(t)
	_, err := s.AddContact("Sam", "AB3DE7FG", "")
	require.NoError(t, err)

	st := s.Snapshot()
	st.Contacts[0].Name = "changed"
	assert.Equal(t, "Sam", s.Snapshot().Contacts[0].Name)
}
