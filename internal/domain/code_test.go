package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCode(t *testing.T) {
	t.Run("长度与字符表", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			code := NewCode()
			assert.Len(t, code.String(), CodeLength)
			assert.True(t, ValidCode(code.String()), "unexpected code %q", code)
		}
	})

	t.Run("不包含易混淆字符", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			code := NewCode().String()
			assert.False(t, strings.ContainsAny(code, "0O1I"), "confusable symbol in %q", code)
		}
	})

	t.Run("连续生成结果不同", func(t *testing.T) {
		seen := make(map[Code]struct{})
		for i := 0; i < 100; i++ {
			seen[NewCode()] = struct{}{}
		}
		assert.Greater(t, len(seen), 95)
	})
}

func TestValidCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", "AB3DE7FG", true},
		{"too short", "AB3DE7F", false},
		{"too long", "AB3DE7FGH", false},
		{"lowercase", "ab3de7fg", false},
		{"contains zero", "AB0DE7FG", false},
		{"contains I", "ABIDE7FG", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCode(tt.input))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB3DE7FG", NormalizeCode("  ab3de7fg \n"))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestSortEntries(t *testing.T) {
	entries := []MailboxEntry{
		{ID: 1, CreatedAt: 100},
		{ID: 3, CreatedAt: 300},
		{ID: 2, CreatedAt: 300},
		{ID: 4, CreatedAt: 200},
	}

	SortEntries(entries)

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{3, 2, 4, 1}, ids)
}

func TestValidateEntry(t *testing.T) {
	assert.NoError(t, ValidateEntry(&MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:image/png;base64,Zm9v"}))

	err := ValidateEntry(&MailboxEntry{ToCode: " ", DataURL: "data:,x"})
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "toCode")

	err = ValidateEntry(&MailboxEntry{ToCode: "AB3DE7FG"})
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "dataUrl")

	assert.True(t, IsValidationError(ValidateEntry(nil)))
}

func TestFriendRequestStatus(t *testing.T) {
	assert.True(t, FriendRequestAccepted.Valid())
	assert.True(t, FriendRequestDeclined.Valid())
	assert.False(t, FriendRequestStatus("maybe").Valid())
}
