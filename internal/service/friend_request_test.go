package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/memory"
)

func TestFriendRequestService(t *testing.T) {
	ctx := context.Background()
	newService := func() *FriendRequestService {
		return NewFriendRequestService(memory.NewStore(storage.DefaultOptions()), nil, nil)
	}

	t.Run("创建与重复请求", func(t *testing.T) {
		svc := newService()
		in := CreateFriendRequestInput{FromCode: "qwerty23", FromName: "Avery", ToCode: "AB3DE7FG"}

		first, dup, err := svc.Create(ctx, in)
		require.NoError(t, err)
		assert.False(t, dup)
		assert.Equal(t, "QWERTY23", first.FromCode)
		assert.Equal(t, domain.FriendRequestPending, first.Status)

		second, dup, err := svc.Create(ctx, in)
		require.NoError(t, err)
		assert.True(t, dup)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("缺少字段或发给自己", func(t *testing.T) {
		svc := newService()

		_, _, err := svc.Create(ctx, CreateFriendRequestInput{FromCode: "QWERTY23", ToCode: "AB3DE7FG"})
		assert.True(t, domain.IsValidationError(err))

		_, _, err = svc.Create(ctx, CreateFriendRequestInput{FromCode: "AB3DE7FG", FromName: "Me", ToCode: "ab3de7fg"})
		assert.ErrorIs(t, err, ErrSelfFriendRequest)
	})

	t.Run("接受后出现在发起方列表", func(t *testing.T) {
		svc := newService()
		req, _, err := svc.Create(ctx, CreateFriendRequestInput{FromCode: "QWERTY23", FromName: "Avery", ToCode: "AB3DE7FG"})
		require.NoError(t, err)

		lists, err := svc.List(ctx, "AB3DE7FG")
		require.NoError(t, err)
		require.Len(t, lists.Incoming, 1)
		assert.Empty(t, lists.Accepted)

		updated, err := svc.Respond(ctx, req.ID, domain.FriendRequestAccepted, "AB3DE7FG")
		require.NoError(t, err)
		assert.Equal(t, domain.FriendRequestAccepted, updated.Status)

		lists, err = svc.List(ctx, "AB3DE7FG")
		require.NoError(t, err)
		assert.Empty(t, lists.Incoming)

		sender, err := svc.List(ctx, "QWERTY23")
		require.NoError(t, err)
		require.Len(t, sender.Accepted, 1)
		assert.Equal(t, req.ID, sender.Accepted[0].ID)
	})

	t.Run("响应校验", func(t *testing.T) {
		svc := newService()
		req, _, err := svc.Create(ctx, CreateFriendRequestInput{FromCode: "QWERTY23", FromName: "Avery", ToCode: "AB3DE7FG"})
		require.NoError(t, err)

		_, err = svc.Respond(ctx, req.ID, domain.FriendRequestPending, "")
		assert.ErrorIs(t, err, ErrInvalidStatus)

		_, err = svc.Respond(ctx, req.ID+100, domain.FriendRequestDeclined, "")
		assert.ErrorIs(t, err, storage.ErrFriendRequestNotFound)

		_, err = svc.Respond(ctx, req.ID, domain.FriendRequestDeclined, "ZZ9ZZ9ZZ")
		assert.ErrorIs(t, err, ErrNotRecipient)

		declined, err := svc.Respond(ctx, req.ID, domain.FriendRequestDeclined, "")
		require.NoError(t, err)
		assert.Equal(t, domain.FriendRequestDeclined, declined.Status)
	})

	t.Run("空邀请码", func(t *testing.T) {
		_, err := newService().List(ctx, "")
		assert.True(t, domain.IsValidationError(err))
	})
}
