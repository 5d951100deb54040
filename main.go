package main

import (
	"github.com/BRumford/timewise-hr-management-sub002/cmd"
)

// @title        TimeWise HR 审批流 API
// @version      1.0
// @description  K-12 学区人事/工时多角色审批流服务, 提供工时卡/代课工时卡/月度工时卡/请假单的创建、审批流转、批量处理、锁定与审计查询接口

// @contact.name  API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 JWT token, 格式: Bearer <token>

func main() {
	cmd.Execute()
}
