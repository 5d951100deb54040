package api

import (
	"net/http"

	"github.com/BRumford/timewise-hr-management-sub002/internal/auth"
	"github.com/BRumford/timewise-hr-management-sub002/internal/config"
	"github.com/BRumford/timewise-hr-management-sub002/internal/metrics"
	"github.com/BRumford/timewise-hr-management-sub002/internal/websocket"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes 配置路由与中间件
func SetupRoutes(
	cfg *config.Config,
	db *gorm.DB,
	validator *auth.TokenValidator,
	hub *websocket.Hub,
	recordController *RecordController,
	workflowController *WorkflowController,
) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(CORSMiddleware(&cfg.CORS))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(db)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 业务路由需要操作者身份与请求日志
	authed := router.Group("/")
	authed.Use(validator.Middleware())
	authed.Use(RequestLogMiddleware())

	// WebSocket 转换事件订阅
	if hub != nil {
		authed.GET("/ws", websocket.Handler(hub))
	}

	// API v1 路由组
	v1 := authed.Group("/api/v1")
	{
		// 记录与工作流路由
		records := v1.Group("/records")
		{
			// 批量操作路由(必须在 /:id 之前)
			records.POST("/batch/transition", recordController.BatchTransition)

			// 派生记录查询(必须在 /:id 之前)
			records.GET("/derived/:leaveId", recordController.Derived)

			// 基础路由
			records.POST("", recordController.Create)
			records.GET("", recordController.List)
			records.GET("/:id", recordController.Get)

			// 具体路径的路由(Gin 会优先匹配更长的路径)
			records.POST("/:id/transition", recordController.Transition)
			records.POST("/:id/lock", recordController.Lock)
			records.POST("/:id/unlock", recordController.Unlock)
			records.GET("/:id/history", recordController.History)
			records.GET("/:id/audit", recordController.Audit)
		}

		// 工作流描述路由
		workflows := v1.Group("/workflows")
		{
			workflows.GET("", workflowController.ListTypes)
			workflows.GET("/:recordType", workflowController.Describe)
		}
	}

	// 未匹配的路由返回 JSON 而不是 HTML
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router
}
