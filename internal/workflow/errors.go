package workflow

import (
	"errors"
	"fmt"
)

// 工作流错误分类
// 所有错误以类型化结果返回给直接调用方,核心内部不做任何重试
var (
	ErrNotFound          = errors.New("record not found")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrRecordLocked      = errors.New("record locked")
	ErrVersionConflict   = errors.New("version conflict")
)

// ExpansionError 请假展开部分失败
// 附着在成功的审批结果上,不回滚审批本身
type ExpansionError struct {
	LeaveRequestID string `json:"leave_request_id"`
	Created        int    `json:"created"`
	Failed         int    `json:"failed"`
	Reason         string `json:"reason,omitempty"`
}

// Error 实现 error 接口
func (e *ExpansionError) Error() string {
	return fmt.Sprintf("leave expansion for %s incomplete: %d created, %d failed: %s",
		e.LeaveRequestID, e.Created, e.Failed, e.Reason)
}
