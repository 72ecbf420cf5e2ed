package sql

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/storagetest"
)

// 需要真实数据库：DOODLE_TEST_MYSQL_DSN / DOODLE_TEST_POSTGRES_SQL_DSN
func TestStoreAgainstDatabases(t *testing.T) {
	targets := map[string]string{
		"mysql":    os.Getenv("DOODLE_TEST_MYSQL_DSN"),
		"postgres": os.Getenv("DOODLE_TEST_POSTGRES_SQL_DSN"),
	}

	for driver, dsn := range targets {
		driver, dsn := driver, dsn
		t.Run(driver, func(t *testing.T) {
			if dsn == "" {
				t.Skipf("%s DSN not set", driver)
			}
			storagetest.RunStoreTests(t, func(t *testing.T, opts storage.Options) storage.Store {
				store, err := NewStore(driver, dsn, 5, 2, time.Minute, opts)
				require.NoError(t, err)
				require.NoError(t, store.gormDB.Exec("DELETE FROM doodles").Error)
				require.NoError(t, store.gormDB.Exec("DELETE FROM friend_requests").Error)
				t.Cleanup(func() { store.Close() })
				return store
			})
		})
	}
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewStore("sqlite", "file::memory:", 1, 1, time.Minute, storage.DefaultOptions())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}
