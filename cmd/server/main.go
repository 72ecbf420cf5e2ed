package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"doodledrop/backend/internal/cache"
	"doodledrop/backend/internal/config"
	"doodledrop/backend/internal/health"
	"doodledrop/backend/internal/logger"
	"doodledrop/backend/internal/middleware"
	"doodledrop/backend/internal/monitoring"
	"doodledrop/backend/internal/service"
	httptransport "doodledrop/backend/internal/transport/http"
)

const (
	limiterSweepInterval = 5 * time.Minute
	storeCheckInterval   = time.Minute
	shutdownTimeout      = 10 * time.Second
)

// main 启动涂鸦中转服务
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting doodle relay",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Int("inbox_limit", cfg.Mailbox.InboxLimit),
		zap.Duration("dedupe_window", cfg.Mailbox.DedupeWindow),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := initializeStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer backend.close(log)

	metrics := monitoring.NewMetrics()

	// 启用 Redis 时去重窗口在多个实例间共享
	var deduper service.DeliveryDeduper
	if backend.cache != nil {
		deduper = backend.cache
	} else {
		local := cache.NewLocalCache(cfg.Mailbox.DedupeWindow, time.Minute)
		defer local.Close()
		deduper = local
	}

	relayService := service.NewRelayService(backend.store, service.RelayOptions{
		InboxLimit:   cfg.Mailbox.InboxLimit,
		DedupeWindow: cfg.Mailbox.DedupeWindow,
		Deduper:      deduper,
		Metrics:      metrics,
	}, log)
	friendService := service.NewFriendRequestService(backend.store, metrics, log)

	healthChecker := health.NewHealthChecker(backend.store, backend.pingers(), log)

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.DeliverPerMinute > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.DeliverPerMinute)
		log.Info("delivery rate limit enabled", zap.Int("per_minute", cfg.RateLimit.DeliverPerMinute))
	}

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:               cfg,
		RelayService:         relayService,
		FriendRequestService: friendService,
		Metrics:              metrics,
		HealthChecker:        healthChecker,
		DeliverRateLimiter:   limiter,
		Logger:               log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理长时间不活跃的限流记录
	if limiter != nil {
		group.Go(func() error {
			ticker := time.NewTicker(limiterSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					if n := limiter.Sweep(); n > 0 {
						log.Debug("rate limiter swept", zap.Int("removed", n))
					}
				}
			}
		})
	}

	// 定时检查存储状态
	group.Go(func() error {
		ticker := time.NewTicker(storeCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				for name, status := range healthChecker.CheckHealth() {
					if strings.HasPrefix(status, "ERROR") {
						log.Warn("dependency unhealthy", zap.String("check", name), zap.String("status", status))
					}
				}
			}
		}
	})

	// 优雅关闭
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", zap.Error(err))
		return
	}

	log.Info("server exited cleanly")
}
