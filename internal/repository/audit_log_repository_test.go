package repository_test

import (
	"testing"
	"time"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/BRumford/timewise-hr-management-sub002/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDBForAuditLog 创建审计日志测试数据库
func setupTestDBForAuditLog(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&model.AuditLogModel{})
	require.NoError(t, err)

	return db
}

// TestAuditLogRepository_Save 测试保存审计日志
func TestAuditLogRepository_Save(t *testing.T) {
	db := setupTestDBForAuditLog(t)
	repo := repository.NewAuditLogRepository(db)

	log := &model.AuditLogModel{
		ID:           "log-001",
		UserID:       "adm-001",
		Action:       "advance",
		ResourceType: "time_card",
		ResourceID:   "rec-001",
		Details:      []byte(`{"from_stage":"draft","to_stage":"secretary_submitted"}`),
		Success:      true,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.Save(log))

	var saved model.AuditLogModel
	err := db.Where("id = ?", "log-001").First(&saved).Error
	require.NoError(t, err)
	assert.Equal(t, "adm-001", saved.UserID)
	assert.Equal(t, "advance", saved.Action)
	assert.True(t, saved.Success)
}

// TestAuditLogRepository_FindByUserID 测试按用户查找审计日志
func TestAuditLogRepository_FindByUserID(t *testing.T) {
	db := setupTestDBForAuditLog(t)
	repo := repository.NewAuditLogRepository(db)

	for i := 1; i <= 3; i++ {
		log := &model.AuditLogModel{
			ID:           "log-00" + string(rune(i+'0')),
			UserID:       "adm-001",
			Action:       "advance",
			ResourceType: "time_card",
			ResourceID:   "rec-001",
			Success:      true,
			CreatedAt:    time.Now(),
		}
		require.NoError(t, repo.Save(log))
	}
	require.NoError(t, repo.Save(&model.AuditLogModel{
		ID: "log-009", UserID: "hr-001", Action: "lock",
		ResourceType: "time_card", ResourceID: "rec-002",
		Success: true, CreatedAt: time.Now(),
	}))

	logs, err := repo.FindByUserID("adm-001")
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

// TestAuditLogRepository_FindByResource 测试按资源查找审计日志
func TestAuditLogRepository_FindByResource(t *testing.T) {
	db := setupTestDBForAuditLog(t)
	repo := repository.NewAuditLogRepository(db)

	require.NoError(t, repo.Save(&model.AuditLogModel{
		ID: "log-001", UserID: "adm-001", Action: "advance",
		ResourceType: "time_card", ResourceID: "rec-001",
		Success: true, CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.Save(&model.AuditLogModel{
		ID: "log-002", UserID: "hr-001", Action: "lock",
		ResourceType: "time_card", ResourceID: "rec-001",
		Success: true, CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.Save(&model.AuditLogModel{
		ID: "log-003", UserID: "adm-001", Action: "reject",
		ResourceType: "leave_request", ResourceID: "lr-001",
		Success: false, CreatedAt: time.Now(),
	}))

	logs, err := repo.FindByResource("time_card", "rec-001")
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = repo.FindByResourceID("lr-001")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
}
