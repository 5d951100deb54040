package container

import (
	"fmt"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/api"
	"github.com/BRumford/timewise-hr-management-sub002/internal/auth"
	"github.com/BRumford/timewise-hr-management-sub002/internal/config"
	"github.com/BRumford/timewise-hr-management-sub002/internal/database"
	"github.com/BRumford/timewise-hr-management-sub002/internal/metrics"
	"github.com/BRumford/timewise-hr-management-sub002/internal/repository"
	"github.com/BRumford/timewise-hr-management-sub002/internal/service"
	"github.com/BRumford/timewise-hr-management-sub002/internal/websocket"
	"github.com/BRumford/timewise-hr-management-sub002/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理数据库、仓储、工作流引擎与各服务的装配
type Container struct {
	db            *gorm.DB
	logger        *logrus.Logger
	recordRepo    repository.RecordRepository
	auditService  service.AuditLogService
	recordService service.RecordService
	validator     *auth.TokenValidator
	hub           *websocket.Hub
	collector     *metrics.Collector
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	logger, err := api.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 初始化数据库(带重试机制)
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return build(cfg, db, logger)
}

// NewContainerWithDB 用现成数据库连接装配容器(测试使用)
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = api.NewLogger()
	}
	return build(cfg, db, logger)
}

func build(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*Container, error) {
	// 仓储
	recordRepo := repository.NewRecordRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// 协作方服务
	auditService := service.NewAuditLogService(auditRepo, logger)
	identityService := service.NewIdentityService(employeeRepo)

	// 请假展开服务
	expander := workflow.NewLeaveExpansionService(recordRepo, workflow.ExpansionConfig{
		DailyHours:        cfg.Workflow.LeaveDailyHours,
		DefaultDailyHours: cfg.Workflow.DefaultLeaveDailyHours,
	}, logger)

	// 工作流引擎与锁定管理器
	engine := workflow.NewEngine(recordRepo, identityService, auditService, expander, logger)
	locks := workflow.NewLockManager(recordRepo, identityService, auditService)

	// WebSocket Hub
	hub := websocket.NewHub(logger)
	go hub.Run()

	// 记录服务
	recordService := service.NewRecordService(recordRepo, engine, locks, auditService, hub, logger)

	// 令牌验证器
	validator := auth.NewTokenValidator(cfg.Auth.Secret, cfg.Auth.Issuer)

	// 指标收集器
	collector := metrics.NewCollector(db, 30*time.Second)
	collector.Start()

	return &Container{
		db:            db,
		logger:        logger,
		recordRepo:    recordRepo,
		auditService:  auditService,
		recordService: recordService,
		validator:     validator,
		hub:           hub,
		collector:     collector,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// RecordService 获取记录服务
func (c *Container) RecordService() service.RecordService {
	return c.recordService
}

// AuditService 获取审计日志服务
func (c *Container) AuditService() service.AuditLogService {
	return c.auditService
}

// TokenValidator 获取令牌验证器
func (c *Container) TokenValidator() *auth.TokenValidator {
	return c.validator
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Close 释放容器资源
func (c *Container) Close() {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
