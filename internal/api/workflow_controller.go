package api

import (
	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/BRumford/timewise-hr-management-sub002/internal/service"
	"github.com/BRumford/timewise-hr-management-sub002/internal/workflow"
	"github.com/gin-gonic/gin"
)

// WorkflowController 工作流描述控制器
// 只读端点,供展示层渲染进度指示而不必复制阶段注册表
type WorkflowController struct {
	recordService service.RecordService
}

// NewWorkflowController 创建工作流描述控制器
func NewWorkflowController(recordService service.RecordService) *WorkflowController {
	return &WorkflowController{recordService: recordService}
}

// ListTypes 列出已注册的记录类型
// @Summary      列出记录类型
// @Tags         工作流
// @Produce      json
// @Success      200  {object}  Response
// @Router       /workflows [get]
// @Security     BearerAuth
func (c *WorkflowController) ListTypes(ctx *gin.Context) {
	Success(ctx, workflow.RecordTypes())
}

// Describe 描述某记录类型的阶段序列
// @Summary      描述记录类型的审批阶段
// @Tags         工作流
// @Produce      json
// @Param        recordType path string true "记录类型"
// @Success      200  {object}  Response
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows/{recordType} [get]
// @Security     BearerAuth
func (c *WorkflowController) Describe(ctx *gin.Context) {
	rt := model.RecordType(ctx.Param("recordType"))

	stages, err := c.recordService.DescribeWorkflow(rt)
	if err != nil {
		WorkflowError(ctx, err)
		return
	}

	Success(ctx, stages)
}
