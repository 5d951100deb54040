package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecordType 可审批记录类型
type RecordType string

const (
	RecordTypeTimeCard           RecordType = "time_card"            // 考勤卡
	RecordTypeSubstituteTimeCard RecordType = "substitute_time_card" // 代课考勤卡
	RecordTypeMonthlyTimeCard    RecordType = "monthly_time_card"    // 月度考勤卡
	RecordTypeLeaveRequest       RecordType = "leave_request"        // 请假申请
)

// Role 操作者角色
type Role string

const (
	RoleSecretary Role = "secretary" // 文员
	RoleEmployee  Role = "employee"  // 员工
	RoleAdmin     Role = "admin"     // 管理员
	RoleHR        Role = "hr"        // 人事
	RolePayroll   Role = "payroll"   // 薪资
)

// Stage 审批阶段
// 状态字符串是对外契约的一部分,客户端依赖精确值,不可改动
type Stage string

const (
	StageDraft               Stage = "draft"
	StageSecretarySubmitted  Stage = "secretary_submitted"
	StageEmployeeApproved    Stage = "employee_approved"
	StageAdminApproved       Stage = "admin_approved"
	StagePayrollProcessed    Stage = "payroll_processed"
	StageSubmittedToEmployee Stage = "submitted_to_employee"
	StageSubmittedToAdmin    Stage = "submitted_to_admin"
	StageSubmittedToPayroll  Stage = "submitted_to_payroll"
	StagePending             Stage = "pending"
	StageApproved            Stage = "approved"
	StageRejected            Stage = "rejected"
	StageCancelled           Stage = "cancelled"
)

// Action 审批动作
type Action string

const (
	ActionAdvance Action = "advance" // 推进到下一阶段
	ActionReject  Action = "reject"  // 拒绝
	ActionCancel  Action = "cancel"  // 取消(仅请假申请)
)

// HistoryEntry 审批历史条目
// 历史只追加,不修改,不截断
type HistoryEntry struct {
	ActorID   string    `json:"actor_id"`
	ActorRole Role      `json:"actor_role"`
	FromStage Stage     `json:"from_stage"`
	ToStage   Stage     `json:"to_stage"`
	Action    Action    `json:"action"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TimeCardPayload 考勤卡业务数据
type TimeCardPayload struct {
	Date       string     `json:"date"` // YYYY-MM-DD
	ClockIn    *time.Time `json:"clock_in,omitempty"`
	ClockOut   *time.Time `json:"clock_out,omitempty"`
	BreakStart *time.Time `json:"break_start,omitempty"`
	BreakEnd   *time.Time `json:"break_end,omitempty"`
	Hours      float64    `json:"hours"`
}

// SubstituteTimeCardPayload 代课考勤卡业务数据
type SubstituteTimeCardPayload struct {
	Date      string     `json:"date"`
	ClockIn   *time.Time `json:"clock_in,omitempty"`
	ClockOut  *time.Time `json:"clock_out,omitempty"`
	DailyRate float64    `json:"daily_rate"`
}

// MonthlyEntry 月度考勤卡单日条目
type MonthlyEntry struct {
	Day   int     `json:"day"`
	Hours float64 `json:"hours"`
}

// MonthlyTimeCardPayload 月度考勤卡业务数据
type MonthlyTimeCardPayload struct {
	Month   int            `json:"month"`
	Year    int            `json:"year"`
	Entries []MonthlyEntry `json:"entries"`
}

// LeaveRequestPayload 请假申请业务数据
type LeaveRequestPayload struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
	LeaveType string `json:"leave_type"` // sick/personal/bereavement 等
	Paid      bool   `json:"paid"`
}

// ApprovableRecord 可审批记录领域对象
// Status 与 CurrentStage 永远保持一致,由工作流引擎统一维护
type ApprovableRecord struct {
	ID                   string           `json:"id"`
	RecordType           RecordType       `json:"record_type"`
	SubjectID            string           `json:"subject_id"`
	Status               Stage            `json:"status"`
	CurrentStage         Stage            `json:"current_stage"`
	StageNotes           map[Stage]string `json:"stage_notes,omitempty"`
	RejectionReason      string           `json:"rejection_reason,omitempty"`
	IsLocked             bool             `json:"is_locked"`
	LockedBy             string           `json:"locked_by,omitempty"`
	LockedAt             *time.Time       `json:"locked_at,omitempty"`
	LockReason           string           `json:"lock_reason,omitempty"`
	ApprovalHistory      []HistoryEntry   `json:"approval_history"`
	Version              int              `json:"version"`
	SourceLeaveRequestID string           `json:"source_leave_request_id,omitempty"`
	CreatedBy            string           `json:"created_by,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`

	// 类型特定业务数据,只有与 RecordType 对应的字段非空
	TimeCard   *TimeCardPayload           `json:"time_card,omitempty"`
	Substitute *SubstituteTimeCardPayload `json:"substitute_time_card,omitempty"`
	Monthly    *MonthlyTimeCardPayload    `json:"monthly_time_card,omitempty"`
	Leave      *LeaveRequestPayload       `json:"leave_request,omitempty"`
}

// AppendStageNote 在指定阶段追加备注
// 同一阶段多次备注按换行拼接,先前内容永不覆盖
func (r *ApprovableRecord) AppendStageNote(stage Stage, note string) {
	if note == "" {
		return
	}
	if r.StageNotes == nil {
		r.StageNotes = make(map[Stage]string)
	}
	if existing := r.StageNotes[stage]; existing != "" {
		r.StageNotes[stage] = existing + "\n" + note
	} else {
		r.StageNotes[stage] = note
	}
}

// Validate 验证领域记录
func (r *ApprovableRecord) Validate() error {
	if r.ID == "" {
		return errors.New("record ID is required")
	}
	if r.RecordType == "" {
		return errors.New("record type is required")
	}
	if r.SubjectID == "" {
		return errors.New("subject ID is required")
	}
	if r.Status == "" {
		return errors.New("record status is required")
	}
	if r.Status != r.CurrentStage {
		return fmt.Errorf("status %q and current stage %q diverged", r.Status, r.CurrentStage)
	}
	if (r.RejectionReason != "") != (r.Status == StageRejected) {
		return errors.New("rejection reason must be set if and only if status is rejected")
	}
	if r.Version < 1 {
		return errors.New("record version must be positive")
	}
	return nil
}

// RecordModel 可审批记录数据模型
// 热点字段落为独立列供查询,完整领域对象序列化存入 Data
type RecordModel struct {
	ID                   string    `gorm:"primaryKey;type:varchar(64)"`
	RecordType           string    `gorm:"type:varchar(32);not null;index"`
	SubjectID            string    `gorm:"type:varchar(64);not null;index"`
	Status               string    `gorm:"type:varchar(32);not null;index"`
	IsLocked             bool      `gorm:"not null;default:false;index"`
	SourceLeaveRequestID string    `gorm:"type:varchar(64);index"`
	Version              int       `gorm:"not null"`
	Data                 []byte    `gorm:"type:jsonb;not null"` // 序列化后的 ApprovableRecord
	CreatedBy            string    `gorm:"type:varchar(64);index"`
	CreatedAt            time.Time `gorm:"not null;index"`
	UpdatedAt            time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (RecordModel) TableName() string {
	return "approvable_records"
}

// Validate 验证记录模型
func (rm *RecordModel) Validate() error {
	if rm.ID == "" {
		return errors.New("record ID is required")
	}
	if rm.RecordType == "" {
		return errors.New("record type is required")
	}
	if rm.SubjectID == "" {
		return errors.New("subject ID is required")
	}
	if rm.Status == "" {
		return errors.New("record status is required")
	}
	if len(rm.Data) == 0 {
		return errors.New("record data is required")
	}
	return nil
}

// ToDomain 反序列化为领域对象
func (rm *RecordModel) ToDomain() (*ApprovableRecord, error) {
	var rec ApprovableRecord
	if err := json.Unmarshal(rm.Data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", rm.ID, err)
	}
	return &rec, nil
}

// FromDomain 由领域对象构建数据模型
func FromDomain(rec *ApprovableRecord) (*RecordModel, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}
	return &RecordModel{
		ID:                   rec.ID,
		RecordType:           string(rec.RecordType),
		SubjectID:            rec.SubjectID,
		Status:               string(rec.Status),
		IsLocked:             rec.IsLocked,
		SourceLeaveRequestID: rec.SourceLeaveRequestID,
		Version:              rec.Version,
		Data:                 data,
		CreatedBy:            rec.CreatedBy,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
	}, nil
}
