package workflow

import (
	"context"

	"github.com/BRumford/timewise-hr-management-sub002/internal/model"
)

// BatchFailure 批量操作中单条记录的失败
type BatchFailure struct {
	RecordID string `json:"record_id"`
	Error    string `json:"error"`
}

// BatchResult 批量操作结果
// 单条失败不阻断也不回滚其他记录
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// ApplyBatch 对一组记录应用同一转换
// 输入先去重,空列表返回两个空表而非错误
func (e *Engine) ApplyBatch(ctx context.Context, recordIDs []string, actorID string, actorRole model.Role, action model.Action, notes string, force bool) *BatchResult {
	result := &BatchResult{
		Succeeded: []string{},
		Failed:    []BatchFailure{},
	}

	seen := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		_, err := e.ApplyTransition(ctx, &TransitionRequest{
			RecordID:  id,
			ActorID:   actorID,
			ActorRole: actorRole,
			Action:    action,
			Notes:     notes,
			Force:     force,
		})
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{RecordID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	return result
}
