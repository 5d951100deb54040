package api

import (
	"net/http"

	"github.com/BRumford/timewise-hr-management-sub002/internal/auth"
	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/BRumford/timewise-hr-management-sub002/internal/repository"
	"github.com/BRumford/timewise-hr-management-sub002/internal/service"
	"github.com/BRumford/timewise-hr-management-sub002/internal/utils"
	"github.com/gin-gonic/gin"
)

// RecordController 可审批记录控制器
type RecordController struct {
	recordService service.RecordService
	auditService  service.AuditLogService
}

// NewRecordController 创建可审批记录控制器
func NewRecordController(recordService service.RecordService, auditService service.AuditLogService) *RecordController {
	return &RecordController{
		recordService: recordService,
		auditService:  auditService,
	}
}

// actor 从上下文取操作者身份,缺失时写出 401
func (c *RecordController) actor(ctx *gin.Context) (string, model.Role, bool) {
	actorID := ctx.GetString(auth.ContextKeyActorID)
	actorRole := ctx.GetString(auth.ContextKeyActorRole)
	if err := utils.ValidateActorID(actorID); err != nil {
		Error(ctx, http.StatusUnauthorized, "missing actor identity", err.Error())
		return "", "", false
	}
	return actorID, model.Role(actorRole), true
}

// validateRecordID 验证记录 ID 并返回错误响应(如果无效)
func (c *RecordController) validateRecordID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateRecordID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid record ID", err.Error())
		return false
	}
	return true
}

// Create 创建记录
// @Summary      创建可审批记录
// @Description  创建考勤卡/代课考勤卡/月度考勤卡/请假申请,进入其类型的首阶段
// @Tags         记录管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateRecordRequest true "记录信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /records [post]
// @Security     BearerAuth
func (c *RecordController) Create(ctx *gin.Context) {
	actorID, _, ok := c.actor(ctx)
	if !ok {
		return
	}

	var req service.CreateRecordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	rec, err := c.recordService.Create(ctx.Request.Context(), actorID, &req)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, rec)
}

// Get 获取记录详情
// @Summary      获取记录详情
// @Tags         记录管理
// @Produce      json
// @Param        id path string true "记录 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /records/{id} [get]
// @Security     BearerAuth
func (c *RecordController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRecordID(ctx, id) {
		return
	}

	rec, err := c.recordService.Get(id)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, rec)
}

// List 列出记录
// @Summary      按过滤器列出记录
// @Tags         记录管理
// @Produce      json
// @Param        record_type query string false "记录类型"
// @Param        status query string false "状态"
// @Param        subject_id query string false "归属员工 ID"
// @Param        locked query bool false "是否锁定"
// @Success      200  {object}  Response
// @Router       /records [get]
// @Security     BearerAuth
func (c *RecordController) List(ctx *gin.Context) {
	filter := &repository.RecordFilter{}
	if v, ok := ctx.GetQuery("record_type"); ok {
		filter.RecordType = &v
	}
	if v, ok := ctx.GetQuery("status"); ok {
		filter.Status = &v
	}
	if v, ok := ctx.GetQuery("subject_id"); ok {
		filter.SubjectID = &v
	}
	if v, ok := ctx.GetQuery("locked"); ok {
		locked := v == "true"
		filter.IsLocked = &locked
	}

	recs, err := c.recordService.List(filter)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, recs)
}

// History 获取审批历史
// @Summary      获取记录的审批历史
// @Tags         记录管理
// @Produce      json
// @Param        id path string true "记录 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /records/{id}/history [get]
// @Security     BearerAuth
func (c *RecordController) History(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRecordID(ctx, id) {
		return
	}

	history, err := c.recordService.History(id)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, history)
}

// Audit 获取审计轨迹
// @Summary      获取记录的审计轨迹
// @Tags         记录管理
// @Produce      json
// @Param        id path string true "记录 ID"
// @Success      200  {object}  Response
// @Router       /records/{id}/audit [get]
// @Security     BearerAuth
func (c *RecordController) Audit(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRecordID(ctx, id) {
		return
	}

	logs, err := c.auditService.FindByResourceID(id)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to query audit trail", err.Error())
		return
	}

	Success(ctx, logs)
}

// Transition 应用一次审批转换
// @Summary      对记录应用一次审批转换
// @Description  按阶段注册表推进、拒绝或取消记录;版本冲突需重新加载后重发
// @Tags         工作流
// @Accept       json
// @Produce      json
// @Param        id path string true "记录 ID"
// @Param        request body service.TransitionRequest true "转换请求"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      423  {object}  ErrorResponse
// @Router       /records/{id}/transition [post]
// @Security     BearerAuth
func (c *RecordController) Transition(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRecordID(ctx, id) {
		return
	}
	actorID, actorRole, ok := c.actor(ctx)
	if !ok {
		return
	}

	var req service.TransitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.recordService.ApplyTransition(ctx.Request.Context(), id, actorID, actorRole, &req)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, result)
}

// BatchTransition 批量审批转换
// @Summary      对一组记录应用同一审批转换
// @Description  逐条独立处理,单条失败不影响其他记录,失败按 ID 枚举
// @Tags         工作流
// @Accept       json
// @Produce      json
// @Param        request body service.BatchTransitionRequest true "批量转换请求"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /records/batch/transition [post]
// @Security     BearerAuth
func (c *RecordController) BatchTransition(ctx *gin.Context) {
	actorID, actorRole, ok := c.actor(ctx)
	if !ok {
		return
	}

	var req service.BatchTransitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.recordService.ApplyBatch(ctx.Request.Context(), actorID, actorRole, &req)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, result)
}

// Lock 冻结记录
// @Summary      冻结记录
// @Description  冻结后记录拒绝一切转换,仅 admin/hr 可操作
// @Tags         锁定管理
// @Accept       json
// @Produce      json
// @Param        id path string true "记录 ID"
// @Param        request body service.LockRequest true "锁定原因"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Router       /records/{id}/lock [post]
// @Security     BearerAuth
func (c *RecordController) Lock(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRecordID(ctx, id) {
		return
	}
	actorID, actorRole, ok := c.actor(ctx)
	if !ok {
		return
	}

	var req service.LockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	rec, err := c.recordService.Lock(id, actorID, actorRole, req.Reason)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, rec)
}

// Unlock 解除冻结
// @Summary      解除记录冻结
// @Tags         锁定管理
// @Produce      json
// @Param        id path string true "记录 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Router       /records/{id}/unlock [post]
// @Security     BearerAuth
func (c *RecordController) Unlock(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRecordID(ctx, id) {
		return
	}
	actorID, actorRole, ok := c.actor(ctx)
	if !ok {
		return
	}

	rec, err := c.recordService.Unlock(id, actorID, actorRole)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, rec)
}

// Derived 获取派生考勤记录
// @Summary      获取某请假申请派生出的考勤记录
// @Tags         记录管理
// @Produce      json
// @Param        leaveId path string true "请假申请 ID"
// @Success      200  {object}  Response
// @Router       /records/derived/{leaveId} [get]
// @Security     BearerAuth
func (c *RecordController) Derived(ctx *gin.Context) {
	leaveID := ctx.Param("leaveId")
	if !c.validateRecordID(ctx, leaveID) {
		return
	}

	recs, err := c.recordService.Derived(leaveID)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, recs)
}
