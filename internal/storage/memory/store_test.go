package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.RunStoreTests(t, func(t *testing.T, opts storage.Options) storage.Store {
		return NewStore(opts)
	})
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewStore(storage.DefaultOptions())
	require.NoError(t, store.Close())

	_, err := store.Put(context.Background(), &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:,x"})
	assert.ErrorIs(t, err, storage.ErrStoreClosed)
	assert.ErrorIs(t, store.Health(), storage.ErrStoreClosed)
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	store := NewStore(storage.DefaultOptions())
	ctx := context.Background()

	_, err := store.Put(ctx, &domain.MailboxEntry{ToCode: "AB3DE7FG", DataURL: "data:,x"})
	require.NoError(t, err)

	items, err := store.List(ctx, "AB3DE7FG", 0)
	require.NoError(t, err)
	items[0].DataURL = "mutated"

	again, err := store.List(ctx, "AB3DE7FG", 0)
	require.NoError(t, err)
	assert.Equal(t, "data:,x", again[0].DataURL)
}
