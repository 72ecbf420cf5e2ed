package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"doodledrop/backend/internal/storage"
)

// Pinger 可探测连通性的外部依赖（如 Redis）
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health  healthcheck.Handler
	store   storage.Store
	pingers map[string]Pinger
	logger  *zap.Logger
}

// NewHealthChecker 创建健康检查器。store 决定就绪状态；
// pingers 中的依赖（例如 "redis"）作为额外的就绪检查。
func NewHealthChecker(store storage.Store, pingers map[string]Pinger, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health:  healthcheck.NewHandler(),
		store:   store,
		pingers: pingers,
		logger:  logger,
	}
	hc.addChecks()
	return hc
}

func (hc *HealthChecker) addChecks() {
	// 进程存活即可
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))

	hc.health.AddReadinessCheck("store", healthcheck.Timeout(func() error {
		return hc.store.Health()
	}, 3*time.Second))

	for name, p := range hc.pingers {
		p := p
		hc.health.AddReadinessCheck(name, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return p.Ping(ctx)
		})
	}
}

// LiveHandler 返回存活检查处理器
func (hc *HealthChecker) LiveHandler() http.Handler {
	return http.HandlerFunc(hc.health.LiveEndpoint)
}

// ReadyHandler 返回就绪检查处理器
func (hc *HealthChecker) ReadyHandler() http.Handler {
	return http.HandlerFunc(hc.health.ReadyEndpoint)
}

// CheckHealth 执行所有检查并返回可读的结果
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		hc.logger.Warn("store health check failed", zap.Error(err))
		results["store"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["store"] = "OK"
	}

	for name, p := range hc.pingers {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			results[name] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results[name] = "OK"
		}
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}
