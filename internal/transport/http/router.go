package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"doodledrop/backend/internal/config"
	"doodledrop/backend/internal/health"
	"doodledrop/backend/internal/middleware"
	"doodledrop/backend/internal/monitoring"
	"doodledrop/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config               *config.Config
	RelayService         *service.RelayService
	FriendRequestService *service.FriendRequestService
	Metrics              *monitoring.Metrics
	HealthChecker        *health.HealthChecker     // 可选
	DeliverRateLimiter   *middleware.IPRateLimiter // 可选，为 nil 时不限流
	Logger               *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.SetHTMLTemplate(inboxTemplate)

	router.Use(middleware.RecoveryHandler(log, deps.Metrics))
	router.Use(middleware.RequestLogger(log))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}
	router.Use(middleware.SecurityHeaders())
	router.Use(gincors.New(corsConfig(deps.Config.CORS.AllowedOrigins)))
	router.Use(middleware.BodySizeLimit(deps.Config.Mailbox.MaxBodyBytes))

	doodles := NewDoodleHandler(deps.RelayService, log)
	friends := NewFriendRequestHandler(deps.FriendRequestService, log)

	deliverChain := []gin.HandlerFunc{}
	if deps.DeliverRateLimiter != nil {
		var onLimited func()
		if deps.Metrics != nil {
			onLimited = func() { deps.Metrics.RecordDelivery(monitoring.DeliveryRateLimited, 0) }
		}
		deliverChain = append(deliverChain, middleware.RateLimitByIP(deps.DeliverRateLimiter, log, onLimited))
	}
	deliverChain = append(deliverChain, doodles.createDoodle)

	api := router.Group("/api")
	{
		api.POST("/doodles", deliverChain...)
		api.GET("/inbox/:code", doodles.getInbox)

		api.POST("/friend-requests", friends.create)
		api.GET("/friend-requests/:code", friends.list)
		api.PATCH("/friend-requests/:id", friends.respond)
	}

	router.GET("/inbox/:code", inboxPage)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapH(deps.HealthChecker.LiveHandler()))
		router.GET("/health/ready", gin.WrapH(deps.HealthChecker.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	return router
}

// corsConfig 浏览器端页面需要跨域读写 API
func corsConfig(origins []string) gincors.Config {
	cfg := gincors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       24 * time.Hour,
	}

	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
