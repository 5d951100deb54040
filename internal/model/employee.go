package model

import (
	"errors"
	"time"
)

// EmployeeModel 员工数据模型
// 身份目录由外部 HR 导入维护,本服务只读
type EmployeeModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Name      string    `gorm:"type:varchar(128);not null"`
	Role      string    `gorm:"type:varchar(32);not null;index"` // secretary/employee/admin/hr/payroll
	Active    bool      `gorm:"not null;default:true;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EmployeeModel) TableName() string {
	return "employees"
}

// Validate 验证员工模型
func (em *EmployeeModel) Validate() error {
	if em.ID == "" {
		return errors.New("employee ID is required")
	}
	if em.Name == "" {
		return errors.New("employee name is required")
	}
	if em.Role == "" {
		return errors.New("employee role is required")
	}
	return nil
}
