package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/BRumford/timewise-hr-management-sub002/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 内存记录存取器,测试用
type memStore struct {
	records map[string]*model.ApprovableRecord
	casErr  error // 注入的 CAS 错误
}

func newMemStore(recs ...*model.ApprovableRecord) *memStore {
	s := &memStore{records: make(map[string]*model.ApprovableRecord)}
	for _, rec := range recs {
		s.records[rec.ID] = cloneRecord(rec)
	}
	return s
}

func (s *memStore) Load(id string) (*model.ApprovableRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return cloneRecord(rec), nil
}

func (s *memStore) CompareAndSwap(id string, expectedVersion int, mutate func(*model.ApprovableRecord) error) (*model.ApprovableRecord, error) {
	if s.casErr != nil {
		return nil, s.casErr
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	if rec.Version != expectedVersion {
		return nil, fmt.Errorf("%w: record %s is at version %d, expected %d",
			workflow.ErrVersionConflict, id, rec.Version, expectedVersion)
	}
	next := cloneRecord(rec)
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version = expectedVersion + 1
	s.records[id] = next
	return cloneRecord(next), nil
}

func cloneRecord(rec *model.ApprovableRecord) *model.ApprovableRecord {
	data, _ := json.Marshal(rec)
	var out model.ApprovableRecord
	_ = json.Unmarshal(data, &out)
	return &out
}

// mapIdentity 身份目录桩
type mapIdentity map[string]model.Role

func (m mapIdentity) RoleOf(actorID string) (model.Role, error) {
	role, ok := m[actorID]
	if !ok {
		return "", fmt.Errorf("actor %s not found in directory", actorID)
	}
	return role, nil
}

// captureAuditor 捕获审计调用的桩
type captureAuditor struct {
	entries []auditEntry
}

type auditEntry struct {
	ActorID string
	Action  string
	Success bool
}

func (a *captureAuditor) Log(actorID, action, resourceType, resourceID string, details interface{}, success bool) {
	a.entries = append(a.entries, auditEntry{ActorID: actorID, Action: action, Success: success})
}

// stubExpander 请假展开桩
type stubExpander struct {
	calls  int
	result *workflow.ExpansionError
}

func (e *stubExpander) ExpandApprovedLeave(ctx context.Context, rec *model.ApprovableRecord) *workflow.ExpansionError {
	e.calls++
	return e.result
}

// newTimeCard 构造测试用考勤卡记录
func newTimeCard(id string, stage model.Stage) *model.ApprovableRecord {
	now := time.Now()
	return &model.ApprovableRecord{
		ID:           id,
		RecordType:   model.RecordTypeTimeCard,
		SubjectID:    "emp-001",
		Status:       stage,
		CurrentStage: stage,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		TimeCard:     &model.TimeCardPayload{Date: "2026-03-02", Hours: 8},
	}
}

// directory 测试身份目录
var directory = mapIdentity{
	"sec-001": model.RoleSecretary,
	"emp-001": model.RoleEmployee,
	"adm-001": model.RoleAdmin,
	"hr-001":  model.RoleHR,
	"pay-001": model.RolePayroll,
	"emp-002": model.RoleEmployee,
}

// TestEngineFullApprovalChain 测试考勤卡完整审批链后被拒绝
func TestEngineFullApprovalChain(t *testing.T) {
	store := newMemStore(newTimeCard("tc-001", model.StageDraft))
	auditor := &captureAuditor{}
	engine := workflow.NewEngine(store, directory, auditor, nil, nil)

	// 文员提交
	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "sec-001", ActorRole: model.RoleSecretary,
		Action: model.ActionAdvance, Notes: "月初提交",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageSecretarySubmitted, result.Record.Status)
	assert.Equal(t, model.StageSecretarySubmitted, result.Record.CurrentStage)
	assert.Equal(t, 2, result.Record.Version)
	assert.Equal(t, "月初提交", result.Record.StageNotes[model.StageDraft])

	// 员工确认
	result, err = engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "emp-001", ActorRole: model.RoleEmployee,
		Action: model.ActionAdvance,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageEmployeeApproved, result.Record.Status)
	assert.Equal(t, 3, result.Record.Version)

	// 管理员拒绝
	result, err = engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionReject, Notes: "工时与排班不符",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageRejected, result.Record.Status)
	assert.Equal(t, "工时与排班不符", result.Record.RejectionReason)
	assert.Equal(t, 4, result.Record.Version)

	// 历史恰好三条,只追加
	require.Len(t, result.Record.ApprovalHistory, 3)
	assert.Equal(t, model.StageDraft, result.Record.ApprovalHistory[0].FromStage)
	assert.Equal(t, model.StageSecretarySubmitted, result.Record.ApprovalHistory[0].ToStage)
	assert.Equal(t, model.ActionReject, result.Record.ApprovalHistory[2].Action)

	// 每次转换都有成功审计
	require.Len(t, auditor.entries, 3)
	for _, entry := range auditor.entries {
		assert.True(t, entry.Success)
	}
}

// TestEngineRejectWithoutNotes 测试不带备注的拒绝仍落拒绝原因
func TestEngineRejectWithoutNotes(t *testing.T) {
	store := newMemStore(newTimeCard("tc-001", model.StageSecretarySubmitted))
	engine := workflow.NewEngine(store, directory, nil, nil, nil)

	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "emp-001", ActorRole: model.RoleEmployee,
		Action: model.ActionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageRejected, result.Record.Status)
	assert.Equal(t, "rejected", result.Record.RejectionReason)
}

// TestEngineSubstituteSkipsEmployee 测试代课考勤卡不经员工确认
func TestEngineSubstituteSkipsEmployee(t *testing.T) {
	rec := newTimeCard("sub-001", model.StageSecretarySubmitted)
	rec.RecordType = model.RecordTypeSubstituteTimeCard
	rec.TimeCard = nil
	rec.Substitute = &model.SubstituteTimeCardPayload{Date: "2026-03-02", DailyRate: 150}
	store := newMemStore(rec)
	engine := workflow.NewEngine(store, directory, nil, nil, nil)

	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "sub-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageAdminApproved, result.Record.Status)
}

// TestEnginePermissionDenied 测试角色不符被拒
func TestEnginePermissionDenied(t *testing.T) {
	store := newMemStore(newTimeCard("tc-001", model.StageSecretarySubmitted))
	auditor := &captureAuditor{}
	engine := workflow.NewEngine(store, directory, auditor, nil, nil)

	// secretary_submitted 阶段需要员工确认,文员无权推进
	_, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "sec-001", ActorRole: model.RoleSecretary,
		Action: model.ActionAdvance,
	})
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)

	// 失败也要审计
	require.Len(t, auditor.entries, 1)
	assert.False(t, auditor.entries[0].Success)

	// 记录保持原状
	rec, _ := store.Load("tc-001")
	assert.Equal(t, model.StageSecretarySubmitted, rec.Status)
	assert.Equal(t, 1, rec.Version)
}

// TestEngineAdminOverride 测试 admin/hr 可在任意阶段操作
func TestEngineAdminOverride(t *testing.T) {
	store := newMemStore(newTimeCard("tc-001", model.StageDraft))
	engine := workflow.NewEngine(store, directory, nil, nil, nil)

	// draft 阶段正常应由文员推进,admin 越权推进也合法
	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageSecretarySubmitted, result.Record.Status)

	// hr 同样可以越权
	result, err = engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "hr-001", ActorRole: model.RoleHR,
		Action: model.ActionAdvance,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageEmployeeApproved, result.Record.Status)
}

// TestEngineIdentityMismatch 测试声称角色与身份目录不一致
func TestEngineIdentityMismatch(t *testing.T) {
	store := newMemStore(newTimeCard("tc-001", model.StageEmployeeApproved))
	engine := workflow.NewEngine(store, directory, nil, nil, nil)

	// emp-002 在目录中是员工,却声称自己是管理员
	_, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "emp-002", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)

	// 目录中不存在的操作者
	_, err = engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "ghost-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)
}

// TestEngineLockedRecord 测试锁定记录拒绝一切转换
func TestEngineLockedRecord(t *testing.T) {
	rec := newTimeCard("tc-001", model.StageEmployeeApproved)
	rec.IsLocked = true
	rec.LockedBy = "hr-001"
	store := newMemStore(rec)
	engine := workflow.NewEngine(store, directory, nil, nil, nil)

	// 正常角色被锁挡住
	_, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	assert.ErrorIs(t, err, workflow.ErrRecordLocked)

	// 非管理角色即使带 Force 也不能穿透
	_, err = engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "emp-001", ActorRole: model.RoleEmployee,
		Action: model.ActionAdvance, Force: true,
	})
	assert.ErrorIs(t, err, workflow.ErrRecordLocked)

	// admin 显式 Force 可穿透
	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance, Force: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageAdminApproved, result.Record.Status)
}

// TestEngineTerminalStage 测试终态记录不可再转换
func TestEngineTerminalStage(t *testing.T) {
	rec := newTimeCard("tc-001", model.StageRejected)
	rec.RejectionReason = "rejected"
	store := newMemStore(rec)
	engine := workflow.NewEngine(store, directory, nil, nil, nil)

	_, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

// TestEngineNotFound 测试记录不存在
func TestEngineNotFound(t *testing.T) {
	engine := workflow.NewEngine(newMemStore(), directory, nil, nil, nil)

	_, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "missing", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

// TestEngineVersionConflict 测试版本冲突原样上抛
func TestEngineVersionConflict(t *testing.T) {
	store := newMemStore(newTimeCard("tc-001", model.StageDraft))
	store.casErr = fmt.Errorf("%w: record tc-001 was modified concurrently", workflow.ErrVersionConflict)
	engine := workflow.NewEngine(store, directory, nil, nil, nil)

	_, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "tc-001", ActorID: "sec-001", ActorRole: model.RoleSecretary,
		Action: model.ActionAdvance,
	})
	assert.ErrorIs(t, err, workflow.ErrVersionConflict)
}

// newLeaveRequest 构造测试用请假申请
func newLeaveRequest(id string) *model.ApprovableRecord {
	now := time.Now()
	return &model.ApprovableRecord{
		ID:           id,
		RecordType:   model.RecordTypeLeaveRequest,
		SubjectID:    "emp-001",
		Status:       model.StagePending,
		CurrentStage: model.StagePending,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		Leave: &model.LeaveRequestPayload{
			StartDate: "2026-03-02",
			EndDate:   "2026-03-04",
			LeaveType: "sick",
			Paid:      true,
		},
	}
}

// TestEngineLeaveApprovalTriggersExpansion 测试请假批准触发考勤展开
func TestEngineLeaveApprovalTriggersExpansion(t *testing.T) {
	store := newMemStore(newLeaveRequest("lr-001"))
	expander := &stubExpander{}
	engine := workflow.NewEngine(store, directory, nil, expander, nil)

	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "lr-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageApproved, result.Record.Status)
	assert.Equal(t, 1, expander.calls)
	assert.Nil(t, result.ExpansionWarning)
}

// TestEngineLeaveExpansionPartialFailure 测试展开不完整时审批仍成功并附带告警
func TestEngineLeaveExpansionPartialFailure(t *testing.T) {
	store := newMemStore(newLeaveRequest("lr-001"))
	expander := &stubExpander{result: &workflow.ExpansionError{
		LeaveRequestID: "lr-001", Created: 2, Failed: 1, Reason: "insert failed",
	}}
	engine := workflow.NewEngine(store, directory, nil, expander, nil)

	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "lr-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionAdvance,
	})
	require.NoError(t, err)
	// 审批结果不回滚
	assert.Equal(t, model.StageApproved, result.Record.Status)
	require.NotNil(t, result.ExpansionWarning)
	assert.Equal(t, 2, result.ExpansionWarning.Created)
	assert.Equal(t, 1, result.ExpansionWarning.Failed)

	rec, _ := store.Load("lr-001")
	assert.Equal(t, model.StageApproved, rec.Status)
}

// TestEngineLeaveRejectNoExpansion 测试请假被拒不触发展开
func TestEngineLeaveRejectNoExpansion(t *testing.T) {
	store := newMemStore(newLeaveRequest("lr-001"))
	expander := &stubExpander{}
	engine := workflow.NewEngine(store, directory, nil, expander, nil)

	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "lr-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionReject, Notes: "人手不足",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageRejected, result.Record.Status)
	assert.Equal(t, 0, expander.calls)
}

// TestEngineLeaveCancel 测试员工取消自己的请假申请
func TestEngineLeaveCancel(t *testing.T) {
	store := newMemStore(newLeaveRequest("lr-001"))
	engine := workflow.NewEngine(store, directory, nil, nil, nil)

	// pending 的下一阶段角色是 admin,员工本人不能直接取消
	// 由 admin 代为取消
	result, err := engine.ApplyTransition(context.Background(), &workflow.TransitionRequest{
		RecordID: "lr-001", ActorID: "adm-001", ActorRole: model.RoleAdmin,
		Action: model.ActionCancel,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageCancelled, result.Record.Status)
}
