package repository

import (
	"errors"
	"fmt"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
	"gorm.io/gorm"
)

// ErrEmployeeNotFound 员工不存在
var ErrEmployeeNotFound = errors.New("employee not found")

// EmployeeRepository 员工仓储接口
type EmployeeRepository interface {
	Save(emp *model.EmployeeModel) error
	FindByID(id string) (*model.EmployeeModel, error)
	FindByRole(role string) ([]*model.EmployeeModel, error)
}

// employeeRepository 员工仓储实现
type employeeRepository struct {
	db *gorm.DB
}

// NewEmployeeRepository 创建员工仓储
func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

// Save 保存员工
func (r *employeeRepository) Save(emp *model.EmployeeModel) error {
	if err := emp.Validate(); err != nil {
		return err
	}
	return r.db.Save(emp).Error
}

// FindByID 根据 ID 查找员工
func (r *employeeRepository) FindByID(id string) (*model.EmployeeModel, error) {
	var emp model.EmployeeModel
	if err := r.db.Where("id = ?", id).First(&emp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
		}
		return nil, err
	}
	return &emp, nil
}

// FindByRole 根据角色查找员工
func (r *employeeRepository) FindByRole(role string) ([]*model.EmployeeModel, error) {
	var emps []*model.EmployeeModel
	err := r.db.Where("role = ? AND active = ?", role, true).
		Order("name ASC").
		Find(&emps).Error
	return emps, err
}
