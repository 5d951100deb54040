package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BRumford/timewise-hr-management-sub002/internal/api"
	"github.com/BRumford/timewise-hr-management-sub002/internal/config"
	"github.com/BRumford/timewise-hr-management-sub002/internal/container"
	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// envelope 统一响应格式
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// setupServer 构建完整 HTTP 测试服务
// 开发模式认证,操作者由 X-Actor-ID/X-Actor-Role 请求头识别
func setupServer(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	err = db.AutoMigrate(&model.RecordModel{}, &model.EmployeeModel{}, &model.AuditLogModel{})
	require.NoError(t, err)

	employees := []model.EmployeeModel{
		{ID: "sec-001", Name: "刘敏", Role: "secretary", Active: true},
		{ID: "emp-001", Name: "王芳", Role: "employee", Active: true},
		{ID: "adm-001", Name: "李强", Role: "admin", Active: true},
		{ID: "hr-001", Name: "赵丽", Role: "hr", Active: true},
		{ID: "pay-001", Name: "陈洁", Role: "payroll", Active: true},
	}
	for i := range employees {
		require.NoError(t, db.Create(&employees[i]).Error)
	}

	cfg := config.Default()
	c, err := container.NewContainerWithDB(cfg, db, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	recordController := api.NewRecordController(c.RecordService(), c.AuditService())
	workflowController := api.NewWorkflowController(c.RecordService())
	return api.SetupRoutes(cfg, db, c.TokenValidator(), c.Hub(), recordController, workflowController)
}

// doRequest 以指定操作者身份发送请求
func doRequest(router *gin.Engine, method, path, actorID, actorRole string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
		req.Header.Set("X-Actor-Role", actorRole)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeEnvelope 解析统一响应
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// createRecord 经 API 创建记录并返回
func createRecord(t *testing.T, router *gin.Engine, actorID string, body map[string]interface{}) *model.ApprovableRecord {
	w := doRequest(router, http.MethodPost, "/api/v1/records", actorID, "secretary", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rec model.ApprovableRecord
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	return &rec
}

// timeCardBody 考勤卡创建请求体
func timeCardBody() map[string]interface{} {
	return map[string]interface{}{
		"record_type": "time_card",
		"subject_id":  "emp-001",
		"time_card":   map[string]interface{}{"date": "2026-03-02", "hours": 8},
	}
}

// TestCreateAndGetRecord 测试创建与查询记录
func TestCreateAndGetRecord(t *testing.T) {
	router := setupServer(t)

	rec := createRecord(t, router, "sec-001", timeCardBody())
	assert.Equal(t, model.StageDraft, rec.Status)
	assert.Equal(t, 1, rec.Version)

	w := doRequest(router, http.MethodGet, "/api/v1/records/"+rec.ID, "sec-001", "secretary", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var loaded model.ApprovableRecord
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &loaded))
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, "emp-001", loaded.SubjectID)

	// 不存在的记录
	w = doRequest(router, http.MethodGet, "/api/v1/records/missing-404", "sec-001", "secretary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestCreateRequiresActor 测试缺失操作者身份返回 401
func TestCreateRequiresActor(t *testing.T) {
	router := setupServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/records", "", "", timeCardBody())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestTransitionEndpoint 测试审批转换端点与错误码契约
func TestTransitionEndpoint(t *testing.T) {
	router := setupServer(t)
	rec := createRecord(t, router, "sec-001", timeCardBody())

	// 文员提交
	w := doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/transition", "sec-001", "secretary",
		map[string]interface{}{"action": "advance", "notes": "提交"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Record model.ApprovableRecord `json:"record"`
	}
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, model.StageSecretarySubmitted, result.Record.Status)
	assert.Equal(t, 2, result.Record.Version)

	// 角色不符 -> 403
	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/transition", "sec-001", "secretary",
		map[string]interface{}{"action": "advance"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 身份冒用 -> 403
	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/transition", "sec-001", "admin",
		map[string]interface{}{"action": "advance"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 员工确认
	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/transition", "emp-001", "employee",
		map[string]interface{}{"action": "advance"})
	assert.Equal(t, http.StatusOK, w.Code)

	// 考勤卡不支持取消 -> 409
	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/transition", "adm-001", "admin",
		map[string]interface{}{"action": "cancel"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 历史端点
	w = doRequest(router, http.MethodGet, "/api/v1/records/"+rec.ID+"/history", "sec-001", "secretary", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var history []model.HistoryEntry
	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 2)

	// 审计端点
	w = doRequest(router, http.MethodGet, "/api/v1/records/"+rec.ID+"/audit", "adm-001", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestLockEndpoints 测试锁定端点与 423 契约
func TestLockEndpoints(t *testing.T) {
	router := setupServer(t)
	rec := createRecord(t, router, "sec-001", timeCardBody())

	// 文员无权锁定 -> 403
	w := doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/lock", "sec-001", "secretary",
		map[string]interface{}{"reason": "试图锁定"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// hr 锁定
	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/lock", "hr-001", "hr",
		map[string]interface{}{"reason": "工资争议"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 锁定记录拒绝转换 -> 423
	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/transition", "sec-001", "secretary",
		map[string]interface{}{"action": "advance"})
	assert.Equal(t, http.StatusLocked, w.Code)

	// admin 显式 force 可穿透
	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/transition", "adm-001", "admin",
		map[string]interface{}{"action": "advance", "force": true})
	assert.Equal(t, http.StatusOK, w.Code)

	// 解锁后恢复正常
	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/unlock", "adm-001", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/records/"+rec.ID+"/transition", "emp-001", "employee",
		map[string]interface{}{"action": "advance"})
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestBatchTransitionEndpoint 测试批量转换端点
func TestBatchTransitionEndpoint(t *testing.T) {
	router := setupServer(t)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := createRecord(t, router, "sec-001", timeCardBody())
		ids = append(ids, rec.ID)
	}

	w := doRequest(router, http.MethodPost, "/api/v1/records/batch/transition", "sec-001", "secretary",
		map[string]interface{}{"record_ids": append(ids, "missing-404"), "action": "advance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Succeeded []string `json:"succeeded"`
		Failed    []struct {
			RecordID string `json:"record_id"`
			Error    string `json:"error"`
		} `json:"failed"`
	}
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Len(t, result.Succeeded, 3)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing-404", result.Failed[0].RecordID)
}

// TestLeaveRequestLifecycle 测试请假申请审批与派生记录查询
func TestLeaveRequestLifecycle(t *testing.T) {
	router := setupServer(t)

	leave := createRecord(t, router, "emp-001", map[string]interface{}{
		"record_type": "leave_request",
		"subject_id":  "emp-001",
		"leave_request": map[string]interface{}{
			"start_date": "2026-03-02",
			"end_date":   "2026-03-04",
			"leave_type": "sick",
			"paid":       true,
		},
	})
	assert.Equal(t, model.StagePending, leave.Status)

	// admin 批准
	w := doRequest(router, http.MethodPost, "/api/v1/records/"+leave.ID+"/transition", "adm-001", "admin",
		map[string]interface{}{"action": "advance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 派生记录查询
	w = doRequest(router, http.MethodGet, "/api/v1/records/derived/"+leave.ID, "adm-001", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var derived []model.ApprovableRecord
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &derived))
	require.Len(t, derived, 3)
	for _, d := range derived {
		assert.Equal(t, model.RecordTypeTimeCard, d.RecordType)
		assert.Equal(t, model.StageAdminApproved, d.Status)
		assert.Equal(t, leave.ID, d.SourceLeaveRequestID)
	}

	// 过滤查询: 该员工已批准的派生考勤
	path := fmt.Sprintf("/api/v1/records?record_type=time_card&subject_id=%s&status=admin_approved", "emp-001")
	w = doRequest(router, http.MethodGet, path, "adm-001", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []model.ApprovableRecord
	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 3)
}

// TestWorkflowEndpoints 测试工作流描述端点
func TestWorkflowEndpoints(t *testing.T) {
	router := setupServer(t)

	w := doRequest(router, http.MethodGet, "/api/v1/workflows", "sec-001", "secretary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var types []string
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &types))
	assert.Len(t, types, 4)

	w = doRequest(router, http.MethodGet, "/api/v1/workflows/time_card", "sec-001", "secretary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stages []struct {
		Stage        string `json:"stage"`
		RequiredRole string `json:"required_role"`
		Terminal     bool   `json:"terminal"`
	}
	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &stages))
	require.Len(t, stages, 5)
	assert.Equal(t, "draft", stages[0].Stage)
	assert.Equal(t, "payroll_processed", stages[4].Stage)
	assert.True(t, stages[4].Terminal)

	// 未知记录类型
	w = doRequest(router, http.MethodGet, "/api/v1/workflows/vacation_card", "sec-001", "secretary", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestHealthAndNoRoute 测试健康检查与未匹配路由
func TestHealthAndNoRoute(t *testing.T) {
	router := setupServer(t)

	w := doRequest(router, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v2/unknown", "sec-001", "secretary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "route not found")
}
