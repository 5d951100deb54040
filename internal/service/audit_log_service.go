package service

import (
	"encoding/json"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/BRumford/timewise-hr-management-sub002/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditLogService 审计日志服务
// Log 实现 workflow.Auditor,对引擎而言 fire-and-forget:
// 审计写入失败只记日志,绝不让转换失败
type AuditLogService interface {
	Log(actorID string, action string, resourceType string, resourceID string, details interface{}, success bool)
	FindByResourceID(resourceID string) ([]*model.AuditLogModel, error)
	FindByUserID(userID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
	logger    *logrus.Logger
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository, logger *logrus.Logger) AuditLogService {
	if logger == nil {
		logger = logrus.New()
	}
	return &auditLogService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Log 记录一条操作审计
func (s *auditLogService) Log(actorID string, action string, resourceType string, resourceID string, details interface{}, success bool) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal audit details")
		detailsJSON = nil
	}

	entry := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      detailsJSON,
		Success:      success,
		CreatedAt:    time.Now(),
	}

	if err := s.auditRepo.Save(entry); err != nil {
		s.logger.WithFields(logrus.Fields{
			"actor_id":    actorID,
			"action":      action,
			"resource_id": resourceID,
		}).WithError(err).Error("failed to persist audit log")
	}
}

// FindByResourceID 查询某资源的审计轨迹
func (s *auditLogService) FindByResourceID(resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResourceID(resourceID)
}

// FindByUserID 查询某用户的审计轨迹
func (s *auditLogService) FindByUserID(userID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByUserID(userID)
}
