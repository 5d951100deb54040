package workflow

import (
	"fmt"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
)

// LockManager 锁定管理器
// 锁定是独立于阶段的冻结开关:不算转换,不写审批历史,但照常审计
type LockManager struct {
	store    RecordStore
	identity Identity
	auditor  Auditor
	now      func() time.Time
}

// NewLockManager 创建锁定管理器
func NewLockManager(store RecordStore, identity Identity, auditor Auditor) *LockManager {
	return &LockManager{
		store:    store,
		identity: identity,
		auditor:  auditor,
		now:      time.Now,
	}
}

// Lock 冻结记录,仅 admin/hr 可调用
// 重复锁定覆盖锁定人与原因
func (m *LockManager) Lock(recordID string, actorID string, actorRole model.Role, reason string) (*model.ApprovableRecord, error) {
	if err := m.checkCaller(actorID, actorRole); err != nil {
		m.audit(actorID, "lock", recordID, reason, false)
		return nil, err
	}

	rec, err := m.store.Load(recordID)
	if err != nil {
		m.audit(actorID, "lock", recordID, reason, false)
		return nil, err
	}

	lockedAt := m.now()
	updated, err := m.store.CompareAndSwap(rec.ID, rec.Version, func(r *model.ApprovableRecord) error {
		r.IsLocked = true
		r.LockedBy = actorID
		r.LockedAt = &lockedAt
		r.LockReason = reason
		return nil
	})
	if err != nil {
		m.audit(actorID, "lock", recordID, reason, false)
		return nil, err
	}

	m.audit(actorID, "lock", recordID, reason, true)
	return updated, nil
}

// Unlock 解除冻结,仅 admin/hr 可调用
// 对未锁定的记录解锁是幂等的
func (m *LockManager) Unlock(recordID string, actorID string, actorRole model.Role) (*model.ApprovableRecord, error) {
	if err := m.checkCaller(actorID, actorRole); err != nil {
		m.audit(actorID, "unlock", recordID, "", false)
		return nil, err
	}

	rec, err := m.store.Load(recordID)
	if err != nil {
		m.audit(actorID, "unlock", recordID, "", false)
		return nil, err
	}
	if !rec.IsLocked {
		m.audit(actorID, "unlock", recordID, "", true)
		return rec, nil
	}

	updated, err := m.store.CompareAndSwap(rec.ID, rec.Version, func(r *model.ApprovableRecord) error {
		r.IsLocked = false
		r.LockedBy = ""
		r.LockedAt = nil
		r.LockReason = ""
		return nil
	})
	if err != nil {
		m.audit(actorID, "unlock", recordID, "", false)
		return nil, err
	}

	m.audit(actorID, "unlock", recordID, "", true)
	return updated, nil
}

// checkCaller 校验调用方身份与角色
func (m *LockManager) checkCaller(actorID string, actorRole model.Role) error {
	if !isOverrideRole(actorRole) {
		return fmt.Errorf("%w: only admin or hr may lock or unlock records", ErrPermissionDenied)
	}
	if m.identity != nil {
		actual, err := m.identity.RoleOf(actorID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		if actual != actorRole {
			return fmt.Errorf("%w: actor %s claims role %s but directory says %s",
				ErrPermissionDenied, actorID, actorRole, actual)
		}
	}
	return nil
}

func (m *LockManager) audit(actorID, action, recordID, reason string, success bool) {
	if m.auditor == nil {
		return
	}
	details := map[string]interface{}{"reason": reason}
	m.auditor.Log(actorID, action, "approvable_record", recordID, details, success)
}
