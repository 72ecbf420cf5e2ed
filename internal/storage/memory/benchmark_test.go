package memory

import (
	"context"
	"fmt"
	"testing"

	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/storage"
)

func BenchmarkMemoryStore_Put(b *testing.B) {
	store := NewStore(storage.DefaultOptions())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Put(ctx, &domain.MailboxEntry{
			ToCode:  fmt.Sprintf("CODE%04d", i%100),
			DataURL: "data:image/png;base64,Zm9v",
		})
	}
}

func BenchmarkMemoryStore_List(b *testing.B) {
	store := NewStore(storage.DefaultOptions())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		store.Put(ctx, &domain.MailboxEntry{
			ToCode:  fmt.Sprintf("CODE%04d", i%10),
			DataURL: "data:image/png;base64,Zm9v",
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.List(ctx, fmt.Sprintf("CODE%04d", i%10), storage.DefaultInboxLimit)
	}
}
