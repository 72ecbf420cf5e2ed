package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"doodledrop/backend/internal/storage"
	"doodledrop/backend/internal/storage/memory"
)

type failingStore struct {
	storage.Store
}

func (failingStore) Health() error { return errors.New("disk gone") }

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthChecker(t *testing.T) {
	t.Run("存储正常时就绪", func(t *testing.T) {
		hc := NewHealthChecker(memory.NewStore(storage.DefaultOptions()), nil, nil)

		rec := httptest.NewRecorder()
		hc.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		hc.LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, "OK", hc.CheckHealth()["store"])
	})

	t.Run("存储异常时未就绪", func(t *testing.T) {
		hc := NewHealthChecker(failingStore{}, nil, nil)

		rec := httptest.NewRecorder()
		hc.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, hc.CheckHealth()["store"], "disk gone")
	})

	t.Run("附加依赖异常时未就绪", func(t *testing.T) {
		hc := NewHealthChecker(memory.NewStore(storage.DefaultOptions()), map[string]Pinger{
			"redis": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
		}, nil)

		rec := httptest.NewRecorder()
		hc.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, hc.CheckHealth()["redis"], "connection refused")
	})
}
