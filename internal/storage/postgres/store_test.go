package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doodledrop/backend/internal/config"
	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	dsn := os.Getenv("DOODLE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DOODLE_TEST_POSTGRES_DSN not set")
	}

	storagetest.RunStoreTests(t, func(t *testing.T, opts storage.Options) storage.Store {
		client, err := New(&config.DatabaseConfig{
			DSN:             dsn,
			MaxOpenConns:    10,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Minute,
		}, nil)
		require.NoError(t, err)

		ctx := context.Background()
		store, err := NewStore(ctx, client, opts)
		require.NoError(t, err)
		_, err = client.Pool().Exec(ctx, "TRUNCATE doodles, friend_requests RESTART IDENTITY")
		require.NoError(t, err)

		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(&config.DatabaseConfig{}, nil)
	require.Error(t, err)
}

func TestPoolConfig(t *testing.T) {
	const dsn = "postgres://u:p@localhost:5432/doodle?sslmode=disable"

	t.Run("使用配置中的连接池参数", func(t *testing.T) {
		pc, err := poolConfig(&config.DatabaseConfig{
			DSN:             dsn,
			MaxOpenConns:    7,
			MaxIdleConns:    3,
			ConnMaxLifetime: 2 * time.Minute,
			ConnMaxIdleTime: 90 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, int32(7), pc.MaxConns)
		assert.Equal(t, int32(3), pc.MinConns)
		assert.Equal(t, 2*time.Minute, pc.MaxConnLifetime)
		assert.Equal(t, 90*time.Second, pc.MaxConnIdleTime)
	})

	t.Run("零值保留默认值", func(t *testing.T) {
		pc, err := poolConfig(&config.DatabaseConfig{DSN: dsn})
		require.NoError(t, err)
		assert.Positive(t, pc.MaxConns)
		assert.Positive(t, pc.MaxConnIdleTime)
	})

	t.Run("DSN 无效返回错误", func(t *testing.T) {
		_, err := poolConfig(&config.DatabaseConfig{DSN: "postgres://%zz"})
		assert.Error(t, err)
	})
}
