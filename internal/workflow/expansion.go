package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// RecordCreator 派生记录的创建入口
type RecordCreator interface {
	Create(rec *model.ApprovableRecord) error
}

// ExpansionConfig 请假展开配置
type ExpansionConfig struct {
	// DailyHours 各请假子类型的单日时长
	DailyHours map[string]float64
	// DefaultDailyHours 未配置子类型时的单日时长
	DefaultDailyHours float64
}

// LeaveExpansionService 请假展开服务
// 审批通过的请假按自然日物化为日级考勤记录,直接进入 admin_approved 阶段:
// 请假已由 admin/hr 授权,只剩薪资处理一步有意义
type LeaveExpansionService struct {
	creator RecordCreator
	cfg     ExpansionConfig
	logger  *logrus.Logger
	now     func() time.Time
}

// NewLeaveExpansionService 创建请假展开服务
func NewLeaveExpansionService(creator RecordCreator, cfg ExpansionConfig, logger *logrus.Logger) *LeaveExpansionService {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.DefaultDailyHours <= 0 {
		cfg.DefaultDailyHours = 8.0
	}
	return &LeaveExpansionService{
		creator: creator,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock 替换时钟(用于测试)
func (s *LeaveExpansionService) SetClock(now func() time.Time) {
	s.now = now
}

// ExpandApprovedLeave 为 [startDate, endDate] 闭区间内每个自然日创建一条派生考勤记录
// 部分失败时已创建的记录保留,只报告创建与失败数,不做全有或全无
func (s *LeaveExpansionService) ExpandApprovedLeave(ctx context.Context, rec *model.ApprovableRecord) *ExpansionError {
	if rec.RecordType != model.RecordTypeLeaveRequest || rec.Leave == nil {
		return &ExpansionError{
			LeaveRequestID: rec.ID,
			Reason:         "record is not a leave request",
		}
	}

	start, err := time.Parse(dateLayout, rec.Leave.StartDate)
	if err != nil {
		return &ExpansionError{LeaveRequestID: rec.ID, Reason: fmt.Sprintf("bad start date %q", rec.Leave.StartDate)}
	}
	end, err := time.Parse(dateLayout, rec.Leave.EndDate)
	if err != nil {
		return &ExpansionError{LeaveRequestID: rec.ID, Reason: fmt.Sprintf("bad end date %q", rec.Leave.EndDate)}
	}
	if end.Before(start) {
		return &ExpansionError{LeaveRequestID: rec.ID, Reason: "end date before start date"}
	}

	hours := s.dailyHours(rec.Leave.LeaveType)
	actorID, actorRole := approvingActor(rec)

	created := 0
	failed := 0
	var lastErr error
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		derived := s.buildDerivedRecord(rec, day, hours, actorID, actorRole)
		if err := s.creator.Create(derived); err != nil {
			failed++
			lastErr = err
			s.logger.WithFields(logrus.Fields{
				"leave_request_id": rec.ID,
				"date":             day.Format(dateLayout),
			}).WithError(err).Error("failed to create derived time card")
			continue
		}
		created++
	}

	if failed > 0 {
		expErr := &ExpansionError{
			LeaveRequestID: rec.ID,
			Created:        created,
			Failed:         failed,
		}
		if lastErr != nil {
			expErr.Reason = lastErr.Error()
		}
		return expErr
	}
	return nil
}

// buildDerivedRecord 构建单日派生考勤记录
func (s *LeaveExpansionService) buildDerivedRecord(src *model.ApprovableRecord, day time.Time, hours float64, actorID string, actorRole model.Role) *model.ApprovableRecord {
	now := s.now()
	date := day.Format(dateLayout)
	return &model.ApprovableRecord{
		ID:                   uuid.New().String(),
		RecordType:           model.RecordTypeTimeCard,
		SubjectID:            src.SubjectID,
		Status:               model.StageAdminApproved,
		CurrentStage:         model.StageAdminApproved,
		SourceLeaveRequestID: src.ID,
		Version:              1,
		CreatedBy:            actorID,
		CreatedAt:            now,
		UpdatedAt:            now,
		ApprovalHistory: []model.HistoryEntry{
			{
				ActorID:   actorID,
				ActorRole: actorRole,
				FromStage: model.StageDraft,
				ToStage:   model.StageAdminApproved,
				Action:    model.ActionAdvance,
				Notes:     fmt.Sprintf("generated from approved leave request %s", src.ID),
				Timestamp: now,
			},
		},
		TimeCard: &model.TimeCardPayload{
			Date:  date,
			Hours: hours,
		},
	}
}

func (s *LeaveExpansionService) dailyHours(leaveType string) float64 {
	if h, ok := s.cfg.DailyHours[leaveType]; ok && h > 0 {
		return h
	}
	return s.cfg.DefaultDailyHours
}

// approvingActor 从审批历史取最终批准人,找不到时退回系统身份
func approvingActor(rec *model.ApprovableRecord) (string, model.Role) {
	for i := len(rec.ApprovalHistory) - 1; i >= 0; i-- {
		entry := rec.ApprovalHistory[i]
		if entry.ToStage == model.StageApproved {
			return entry.ActorID, entry.ActorRole
		}
	}
	return "system", model.RoleAdmin
}
