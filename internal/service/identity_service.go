package service

import (
	"fmt"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"github.com/BRumford/timewise-hr-management-sub002/internal/repository"
)

// IdentityService 身份服务,实现 workflow.Identity
// 角色以员工目录为准,调用方声称的角色只作校验输入
type IdentityService interface {
	RoleOf(actorID string) (model.Role, error)
}

// identityService 身份服务实现
type identityService struct {
	employeeRepo repository.EmployeeRepository
}

// NewIdentityService 创建身份服务
func NewIdentityService(employeeRepo repository.EmployeeRepository) IdentityService {
	return &identityService{employeeRepo: employeeRepo}
}

// RoleOf 查询操作者角色
func (s *identityService) RoleOf(actorID string) (model.Role, error) {
	emp, err := s.employeeRepo.FindByID(actorID)
	if err != nil {
		return "", err
	}
	if !emp.Active {
		return "", fmt.Errorf("employee %s is inactive", actorID)
	}
	return model.Role(emp.Role), nil
}
