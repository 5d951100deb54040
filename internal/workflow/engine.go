package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/sirupsen/logrus"
)

// RecordStore 记录存取器
// CompareAndSwap 是唯一的写路径,其他组件不得绕过
type RecordStore interface {
	Load(id string) (*model.ApprovableRecord, error)
	CompareAndSwap(id string, expectedVersion int, mutate func(*model.ApprovableRecord) error) (*model.ApprovableRecord, error)
}

// Auditor 审计协作方
// 从引擎角度 fire-and-forget,记录失败不影响转换结果
type Auditor interface {
	Log(actorID string, action string, resourceType string, resourceID string, details interface{}, success bool)
}

// Identity 身份协作方
// 引擎在信任调用方声称的角色前先经此校验
type Identity interface {
	RoleOf(actorID string) (model.Role, error)
}

// LeaveExpander 请假展开协作方
type LeaveExpander interface {
	ExpandApprovedLeave(ctx context.Context, rec *model.ApprovableRecord) *ExpansionError
}

// TransitionRequest 转换请求
type TransitionRequest struct {
	RecordID  string
	ActorID   string
	ActorRole model.Role
	Action    model.Action
	Notes     string
	// Force 仅对 admin/hr 生效,显式穿透锁定;否则锁定记录拒绝一切转换
	Force bool
}

// TransitionResult 转换结果
// ExpansionWarning 仅在请假审批通过但考勤展开不完整时出现
type TransitionResult struct {
	Record           *model.ApprovableRecord `json:"record"`
	ExpansionWarning *ExpansionError         `json:"expansion_warning,omitempty"`
}

// Engine 工作流引擎
// 每次转换是已加载记录加注册表的纯函数,无进程级可变状态
type Engine struct {
	store    RecordStore
	identity Identity
	auditor  Auditor
	expander LeaveExpander
	logger   *logrus.Logger
	now      func() time.Time
}

// NewEngine 创建工作流引擎
func NewEngine(store RecordStore, identity Identity, auditor Auditor, expander LeaveExpander, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		store:    store,
		identity: identity,
		auditor:  auditor,
		expander: expander,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock 替换时钟(用于测试)
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// ApplyTransition 对单条记录应用一次转换
// 版本冲突原样上抛,由调用方重新加载后重发,保证并发下恰有一个赢家
func (e *Engine) ApplyTransition(ctx context.Context, req *TransitionRequest) (*TransitionResult, error) {
	rec, err := e.validateAndResolve(req)
	if err != nil {
		e.audit(req, rec, "", false)
		return nil, err
	}

	from := rec.Status
	next, _ := NextStage(rec.RecordType, rec.Status, req.Action)

	updated, err := e.store.CompareAndSwap(rec.ID, rec.Version, func(r *model.ApprovableRecord) error {
		r.AppendStageNote(from, req.Notes)
		r.Status = next
		r.CurrentStage = next
		if req.Action == model.ActionReject {
			if req.Notes != "" {
				r.RejectionReason = req.Notes
			} else {
				r.RejectionReason = "rejected"
			}
		}
		r.ApprovalHistory = append(r.ApprovalHistory, model.HistoryEntry{
			ActorID:   req.ActorID,
			ActorRole: req.ActorRole,
			FromStage: from,
			ToStage:   next,
			Action:    req.Action,
			Notes:     req.Notes,
			Timestamp: e.now(),
		})
		return nil
	})
	if err != nil {
		e.audit(req, rec, next, false)
		return nil, err
	}

	result := &TransitionResult{Record: updated}

	// 请假审批通过后展开日级考勤记录
	// 展开失败是独立事实,作为次级告警附带返回,不回滚审批
	if updated.RecordType == model.RecordTypeLeaveRequest && updated.Status == model.StageApproved && e.expander != nil {
		if expErr := e.expander.ExpandApprovedLeave(ctx, updated); expErr != nil {
			e.logger.WithFields(logrus.Fields{
				"record_id": updated.ID,
				"created":   expErr.Created,
				"failed":    expErr.Failed,
			}).Warn("leave expansion incomplete")
			result.ExpansionWarning = expErr
		}
	}

	e.audit(req, updated, next, true)
	return result, nil
}

// validateAndResolve 执行加载、锁定、合法性与权限检查
// 返回加载到的记录;检查失败时记录可能为 nil(未找到)
func (e *Engine) validateAndResolve(req *TransitionRequest) (*model.ApprovableRecord, error) {
	rec, err := e.store.Load(req.RecordID)
	if err != nil {
		return nil, err
	}

	// 调用方声称的角色必须与身份目录一致
	if e.identity != nil {
		actual, err := e.identity.RoleOf(req.ActorID)
		if err != nil {
			return rec, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		if actual != req.ActorRole {
			return rec, fmt.Errorf("%w: actor %s claims role %s but directory says %s",
				ErrPermissionDenied, req.ActorID, req.ActorRole, actual)
		}
	}

	// 锁定优先于一切;admin/hr 仅在显式 Force 时可穿透
	if rec.IsLocked {
		if !req.Force || !isOverrideRole(req.ActorRole) {
			return rec, fmt.Errorf("%w: record %s is locked by %s", ErrRecordLocked, rec.ID, rec.LockedBy)
		}
	}

	next, err := NextStage(rec.RecordType, rec.Status, req.Action)
	if err != nil {
		return rec, err
	}

	// admin/hr 可在任意阶段操作,这是显式越权而非注册表声明
	if !isOverrideRole(req.ActorRole) {
		required, err := RequiredRole(rec.RecordType, rec.Status)
		if err != nil {
			return rec, err
		}
		if required != req.ActorRole {
			return rec, fmt.Errorf("%w: stage %s requires role %s, actor has %s",
				ErrPermissionDenied, next, required, req.ActorRole)
		}
	}

	return rec, nil
}

// audit 发出一条审计记录,不因审计失败影响主流程
func (e *Engine) audit(req *TransitionRequest, rec *model.ApprovableRecord, to model.Stage, success bool) {
	if e.auditor == nil {
		return
	}
	resourceType := "approvable_record"
	from := model.Stage("")
	if rec != nil {
		resourceType = string(rec.RecordType)
		from = rec.Status
		if success {
			// 成功路径下 rec 已是转换后的记录
			if n := len(rec.ApprovalHistory); n > 0 {
				from = rec.ApprovalHistory[n-1].FromStage
			}
		}
	}
	details := map[string]interface{}{
		"action":     req.Action,
		"from_stage": from,
		"to_stage":   to,
		"actor_role": req.ActorRole,
		"notes":      req.Notes,
	}
	e.auditor.Log(req.ActorID, string(req.Action), resourceType, req.RecordID, details, success)
}

func isOverrideRole(role model.Role) bool {
	return role == model.RoleAdmin || role == model.RoleHR
}
