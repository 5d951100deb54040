package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/BRumford/timewise-hr-management-sub002/internal/workflow"
	"gorm.io/gorm"
)

// RecordRepository 可审批记录仓储接口
// CompareAndSwap 是唯一的状态写路径,绕过它会破坏"恰有一个赢家"保证
type RecordRepository interface {
	Create(rec *model.ApprovableRecord) error
	Load(id string) (*model.ApprovableRecord, error)
	CompareAndSwap(id string, expectedVersion int, mutate func(*model.ApprovableRecord) error) (*model.ApprovableRecord, error)
	FindByFilter(filter *RecordFilter) ([]*model.ApprovableRecord, error)
	FindBySourceLeaveRequest(leaveRequestID string) ([]*model.ApprovableRecord, error)
}

// RecordFilter 记录查询过滤器
type RecordFilter struct {
	RecordType *string
	Status     *string
	SubjectID  *string
	IsLocked   *bool
}

// recordRepository 可审批记录仓储实现
type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository 创建可审批记录仓储
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

// Create 保存新记录
func (r *recordRepository) Create(rec *model.ApprovableRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	row, err := model.FromDomain(rec)
	if err != nil {
		return err
	}
	return r.db.Create(row).Error
}

// Load 根据 ID 加载记录
func (r *recordRepository) Load(id string) (*model.ApprovableRecord, error) {
	var row model.RecordModel
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return row.ToDomain()
}

// CompareAndSwap 带版本前置条件的写入
// 仅当存储中的 version 等于 expectedVersion 时应用 mutate,
// 成功则版本加一并在单个事务中持久化;不匹配返回版本冲突,无副作用
func (r *recordRepository) CompareAndSwap(id string, expectedVersion int, mutate func(*model.ApprovableRecord) error) (*model.ApprovableRecord, error) {
	var result *model.ApprovableRecord

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var row model.RecordModel
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
			}
			return err
		}
		if row.Version != expectedVersion {
			return fmt.Errorf("%w: record %s is at version %d, expected %d",
				workflow.ErrVersionConflict, id, row.Version, expectedVersion)
		}

		rec, err := row.ToDomain()
		if err != nil {
			return err
		}
		if err := mutate(rec); err != nil {
			return err
		}

		rec.Version = expectedVersion + 1
		rec.UpdatedAt = time.Now()

		updated, err := model.FromDomain(rec)
		if err != nil {
			return err
		}

		// 条件更新兜底并发写:版本列不匹配则零行受影响
		res := tx.Model(&model.RecordModel{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(map[string]interface{}{
				"status":     updated.Status,
				"is_locked":  updated.IsLocked,
				"version":    updated.Version,
				"data":       updated.Data,
				"updated_at": updated.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: record %s was modified concurrently", workflow.ErrVersionConflict, id)
		}

		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindByFilter 根据过滤器查找记录
func (r *recordRepository) FindByFilter(filter *RecordFilter) ([]*model.ApprovableRecord, error) {
	query := r.db.Model(&model.RecordModel{})
	if filter != nil {
		if filter.RecordType != nil {
			query = query.Where("record_type = ?", *filter.RecordType)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.SubjectID != nil {
			query = query.Where("subject_id = ?", *filter.SubjectID)
		}
		if filter.IsLocked != nil {
			query = query.Where("is_locked = ?", *filter.IsLocked)
		}
	}

	var rows []*model.RecordModel
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainList(rows)
}

// FindBySourceLeaveRequest 查找某请假申请派生出的考勤记录
func (r *recordRepository) FindBySourceLeaveRequest(leaveRequestID string) ([]*model.ApprovableRecord, error) {
	var rows []*model.RecordModel
	err := r.db.Where("source_leave_request_id = ?", leaveRequestID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(rows)
}

func toDomainList(rows []*model.RecordModel) ([]*model.ApprovableRecord, error) {
	recs := make([]*model.ApprovableRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
