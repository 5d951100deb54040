package service

import (
	"context"
	"errors"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/metrics"
	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/BRumford/timewise-hr-management-sub002/internal/repository"
	"github.com/BRumford/timewise-hr-management-sub002/internal/workflow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier 转换事件发布方(WebSocket 推送)
type Notifier interface {
	Publish(event interface{})
}

// CreateRecordRequest 创建记录请求
// @Description 创建可审批记录的请求参数
type CreateRecordRequest struct {
	RecordType string `json:"record_type" example:"time_card" binding:"required"` // 记录类型
	SubjectID  string `json:"subject_id" example:"emp-001" binding:"required"`    // 记录归属员工 ID

	TimeCard   *model.TimeCardPayload           `json:"time_card,omitempty"`
	Substitute *model.SubstituteTimeCardPayload `json:"substitute_time_card,omitempty"`
	Monthly    *model.MonthlyTimeCardPayload    `json:"monthly_time_card,omitempty"`
	Leave      *model.LeaveRequestPayload       `json:"leave_request,omitempty"`
}

// TransitionRequest 单条转换请求
// @Description 对单条记录应用一次审批转换
type TransitionRequest struct {
	Action string `json:"action" example:"advance" binding:"required"` // advance/reject/cancel
	Notes  string `json:"notes" example:"同意"`                         // 审批备注
	Force  bool   `json:"force"`                                      // admin/hr 穿透锁定
}

// BatchTransitionRequest 批量转换请求
// @Description 对一组记录应用同一审批转换
type BatchTransitionRequest struct {
	RecordIDs []string `json:"record_ids" binding:"required"` // 记录 ID 列表
	Action    string   `json:"action" binding:"required"`     // advance/reject/cancel
	Notes     string   `json:"notes"`                         // 审批备注
	Force     bool     `json:"force"`                         // admin/hr 穿透锁定
}

// LockRequest 锁定请求
// @Description 冻结记录的请求参数
type LockRequest struct {
	Reason string `json:"reason" example:"payroll audit"` // 锁定原因
}

// TransitionEvent 推送给展示层的转换事件
type TransitionEvent struct {
	Type       string           `json:"type"`
	RecordID   string           `json:"record_id"`
	RecordType model.RecordType `json:"record_type"`
	SubjectID  string           `json:"subject_id"`
	Status     model.Stage      `json:"status"`
	ActorID    string           `json:"actor_id"`
	Timestamp  time.Time        `json:"timestamp"`
}

// RecordService 可审批记录服务接口
type RecordService interface {
	Create(ctx context.Context, actorID string, req *CreateRecordRequest) (*model.ApprovableRecord, error)
	Get(id string) (*model.ApprovableRecord, error)
	List(filter *repository.RecordFilter) ([]*model.ApprovableRecord, error)
	History(id string) ([]model.HistoryEntry, error)
	Derived(leaveRequestID string) ([]*model.ApprovableRecord, error)
	ApplyTransition(ctx context.Context, recordID, actorID string, actorRole model.Role, req *TransitionRequest) (*workflow.TransitionResult, error)
	ApplyBatch(ctx context.Context, actorID string, actorRole model.Role, req *BatchTransitionRequest) (*workflow.BatchResult, error)
	Lock(recordID, actorID string, actorRole model.Role, reason string) (*model.ApprovableRecord, error)
	Unlock(recordID, actorID string, actorRole model.Role) (*model.ApprovableRecord, error)
	DescribeWorkflow(recordType model.RecordType) ([]workflow.StageInfo, error)
}

// recordService 可审批记录服务实现
type recordService struct {
	recordRepo repository.RecordRepository
	engine     *workflow.Engine
	locks      *workflow.LockManager
	auditSvc   AuditLogService
	notifier   Notifier
	logger     *logrus.Logger
}

// NewRecordService 创建可审批记录服务
func NewRecordService(
	recordRepo repository.RecordRepository,
	engine *workflow.Engine,
	locks *workflow.LockManager,
	auditSvc AuditLogService,
	notifier Notifier,
	logger *logrus.Logger,
) RecordService {
	if logger == nil {
		logger = logrus.New()
	}
	return &recordService{
		recordRepo: recordRepo,
		engine:     engine,
		locks:      locks,
		auditSvc:   auditSvc,
		notifier:   notifier,
		logger:     logger,
	}
}

// Create 创建记录,进入其类型序列的首阶段
// 创建后 status/currentStage 只能经工作流引擎变更
func (s *recordService) Create(ctx context.Context, actorID string, req *CreateRecordRequest) (*model.ApprovableRecord, error) {
	rt := model.RecordType(req.RecordType)
	initial, err := workflow.InitialStage(rt)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &model.ApprovableRecord{
		ID:           uuid.New().String(),
		RecordType:   rt,
		SubjectID:    req.SubjectID,
		Status:       initial,
		CurrentStage: initial,
		Version:      1,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		TimeCard:     req.TimeCard,
		Substitute:   req.Substitute,
		Monthly:      req.Monthly,
		Leave:        req.Leave,
	}

	if err := s.recordRepo.Create(rec); err != nil {
		return nil, err
	}

	metrics.RecordCreated(string(rt))
	if s.auditSvc != nil {
		s.auditSvc.Log(actorID, "create", string(rt), rec.ID, map[string]interface{}{
			"subject_id": rec.SubjectID,
			"status":     rec.Status,
		}, true)
	}

	return rec, nil
}

// Get 获取记录详情
func (s *recordService) Get(id string) (*model.ApprovableRecord, error) {
	return s.recordRepo.Load(id)
}

// List 按过滤器列出记录
func (s *recordService) List(filter *repository.RecordFilter) ([]*model.ApprovableRecord, error) {
	return s.recordRepo.FindByFilter(filter)
}

// History 返回记录的审批历史
func (s *recordService) History(id string) ([]model.HistoryEntry, error) {
	rec, err := s.recordRepo.Load(id)
	if err != nil {
		return nil, err
	}
	return rec.ApprovalHistory, nil
}

// Derived 返回某请假申请派生出的考勤记录
func (s *recordService) Derived(leaveRequestID string) ([]*model.ApprovableRecord, error) {
	return s.recordRepo.FindBySourceLeaveRequest(leaveRequestID)
}

// ApplyTransition 对单条记录应用一次转换
func (s *recordService) ApplyTransition(ctx context.Context, recordID, actorID string, actorRole model.Role, req *TransitionRequest) (*workflow.TransitionResult, error) {
	result, err := s.engine.ApplyTransition(ctx, &workflow.TransitionRequest{
		RecordID:  recordID,
		ActorID:   actorID,
		ActorRole: actorRole,
		Action:    model.Action(req.Action),
		Notes:     req.Notes,
		Force:     req.Force,
	})
	if err != nil {
		metrics.RecordTransition("", req.Action, transitionOutcome(err))
		return nil, err
	}

	metrics.RecordTransition(string(result.Record.RecordType), req.Action, "success")
	s.publishTransition(result.Record, actorID)
	return result, nil
}

// ApplyBatch 对一组记录应用同一转换
func (s *recordService) ApplyBatch(ctx context.Context, actorID string, actorRole model.Role, req *BatchTransitionRequest) (*workflow.BatchResult, error) {
	result := s.engine.ApplyBatch(ctx, req.RecordIDs, actorID, actorRole, model.Action(req.Action), req.Notes, req.Force)

	metrics.RecordBatch(req.Action, len(result.Succeeded), len(result.Failed))
	for _, id := range result.Succeeded {
		if rec, err := s.recordRepo.Load(id); err == nil {
			s.publishTransition(rec, actorID)
		}
	}
	return result, nil
}

// Lock 冻结记录
func (s *recordService) Lock(recordID, actorID string, actorRole model.Role, reason string) (*model.ApprovableRecord, error) {
	return s.locks.Lock(recordID, actorID, actorRole, reason)
}

// Unlock 解除冻结
func (s *recordService) Unlock(recordID, actorID string, actorRole model.Role) (*model.ApprovableRecord, error) {
	return s.locks.Unlock(recordID, actorID, actorRole)
}

// DescribeWorkflow 返回记录类型的阶段序列与所需角色
func (s *recordService) DescribeWorkflow(recordType model.RecordType) ([]workflow.StageInfo, error) {
	return workflow.Describe(recordType)
}

// publishTransition 向 WebSocket 订阅方推送转换事件
func (s *recordService) publishTransition(rec *model.ApprovableRecord, actorID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(&TransitionEvent{
		Type:       "record_transition",
		RecordID:   rec.ID,
		RecordType: rec.RecordType,
		SubjectID:  rec.SubjectID,
		Status:     rec.Status,
		ActorID:    actorID,
		Timestamp:  time.Now(),
	})
}

// transitionOutcome 把错误映射为指标用的结果标签
func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return "not_found"
	case errors.Is(err, workflow.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, workflow.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, workflow.ErrRecordLocked):
		return "record_locked"
	case errors.Is(err, workflow.ErrVersionConflict):
		return "version_conflict"
	default:
		return "error"
	}
}
