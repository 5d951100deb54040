package workflow

import (
	"fmt"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
)

// StageDef 阶段定义
// Role 是推进到该阶段所需的角色,首阶段由创建操作进入,不设角色
type StageDef struct {
	Stage model.Stage
	Role  model.Role
}

// StageInfo 阶段描述,供展示层渲染进度条使用
type StageInfo struct {
	Stage        model.Stage `json:"stage"`
	RequiredRole model.Role  `json:"required_role,omitempty"`
	Terminal     bool        `json:"terminal"`
}

// sequences 各记录类型的阶段序列
// 新增记录类型只需在此表增加一行
var sequences = map[model.RecordType][]StageDef{
	model.RecordTypeTimeCard: {
		{Stage: model.StageDraft},
		{Stage: model.StageSecretarySubmitted, Role: model.RoleSecretary},
		{Stage: model.StageEmployeeApproved, Role: model.RoleEmployee},
		{Stage: model.StageAdminApproved, Role: model.RoleAdmin},
		{Stage: model.StagePayrollProcessed, Role: model.RolePayroll},
	},
	model.RecordTypeSubstituteTimeCard: {
		{Stage: model.StageDraft},
		{Stage: model.StageSecretarySubmitted, Role: model.RoleSecretary},
		{Stage: model.StageAdminApproved, Role: model.RoleAdmin},
		{Stage: model.StagePayrollProcessed, Role: model.RolePayroll},
	},
	model.RecordTypeMonthlyTimeCard: {
		{Stage: model.StageDraft},
		{Stage: model.StageSubmittedToEmployee, Role: model.RoleSecretary},
		{Stage: model.StageEmployeeApproved, Role: model.RoleEmployee},
		{Stage: model.StageSubmittedToAdmin, Role: model.RoleAdmin},
		{Stage: model.StageSubmittedToPayroll, Role: model.RoleAdmin},
		{Stage: model.StagePayrollProcessed, Role: model.RolePayroll},
	},
	model.RecordTypeLeaveRequest: {
		{Stage: model.StagePending},
		{Stage: model.StageApproved, Role: model.RoleAdmin},
	},
}

// terminalStages 终态,任何转换均不合法
var terminalStages = map[model.Stage]bool{
	model.StagePayrollProcessed: true,
	model.StageRejected:         true,
	model.StageCancelled:        true,
}

// IsTerminal 判断阶段是否为终态
func IsTerminal(stage model.Stage) bool {
	return terminalStages[stage]
}

// InitialStage 返回记录类型的首阶段
func InitialStage(rt model.RecordType) (model.Stage, error) {
	seq, ok := sequences[rt]
	if !ok {
		return "", fmt.Errorf("%w: unknown record type %q", ErrIllegalTransition, rt)
	}
	return seq[0].Stage, nil
}

// NextStage 解析一次转换的目标阶段
// 纯函数,无 I/O,可按表单元测试
func NextStage(rt model.RecordType, current model.Stage, action model.Action) (model.Stage, error) {
	seq, ok := sequences[rt]
	if !ok {
		return "", fmt.Errorf("%w: unknown record type %q", ErrIllegalTransition, rt)
	}
	if IsTerminal(current) {
		return "", fmt.Errorf("%w: %s is terminal", ErrIllegalTransition, current)
	}

	idx := stageIndex(seq, current)
	if idx < 0 {
		return "", fmt.Errorf("%w: stage %q is not part of the %s sequence", ErrIllegalTransition, current, rt)
	}

	switch action {
	case model.ActionAdvance:
		if idx == len(seq)-1 {
			return "", fmt.Errorf("%w: %s has no next stage", ErrIllegalTransition, current)
		}
		return seq[idx+1].Stage, nil
	case model.ActionReject:
		// 请假申请可从初始的 pending 拒绝,顺序审批类型只能从非初始阶段拒绝
		if rt != model.RecordTypeLeaveRequest && idx == 0 {
			return "", fmt.Errorf("%w: cannot reject from initial stage %s", ErrIllegalTransition, current)
		}
		return model.StageRejected, nil
	case model.ActionCancel:
		if rt != model.RecordTypeLeaveRequest {
			return "", fmt.Errorf("%w: %s records cannot be cancelled", ErrIllegalTransition, rt)
		}
		return model.StageCancelled, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrIllegalTransition, action)
	}
}

// RequiredRole 返回从 current 阶段发起转换所需的角色
// 即序列中下一阶段声明的角色;admin/hr 的全局越权由引擎单独处理
func RequiredRole(rt model.RecordType, current model.Stage) (model.Role, error) {
	seq, ok := sequences[rt]
	if !ok {
		return "", fmt.Errorf("%w: unknown record type %q", ErrIllegalTransition, rt)
	}
	idx := stageIndex(seq, current)
	if idx < 0 || idx == len(seq)-1 {
		return "", fmt.Errorf("%w: no actionable stage after %q for %s", ErrIllegalTransition, current, rt)
	}
	return seq[idx+1].Role, nil
}

// Describe 返回记录类型的有序阶段列表及所需角色
func Describe(rt model.RecordType) ([]StageInfo, error) {
	seq, ok := sequences[rt]
	if !ok {
		return nil, fmt.Errorf("%w: unknown record type %q", ErrIllegalTransition, rt)
	}
	infos := make([]StageInfo, 0, len(seq))
	for _, def := range seq {
		infos = append(infos, StageInfo{
			Stage:        def.Stage,
			RequiredRole: def.Role,
			Terminal:     IsTerminal(def.Stage),
		})
	}
	return infos, nil
}

// RecordTypes 返回已注册的记录类型
func RecordTypes() []model.RecordType {
	return []model.RecordType{
		model.RecordTypeTimeCard,
		model.RecordTypeSubstituteTimeCard,
		model.RecordTypeMonthlyTimeCard,
		model.RecordTypeLeaveRequest,
	}
}

func stageIndex(seq []StageDef, stage model.Stage) int {
	for i, def := range seq {
		if def.Stage == stage {
			return i
		}
	}
	return -1
}
