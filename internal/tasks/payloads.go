package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePDFFinalize = "pdf:finalize"
)

// PDFFinalizePayload 描述最终编译任务所需的最小信息，文档快照
// 保存在 CompileJob 记录里。
type PDFFinalizePayload struct {
	JobID         uint   `json:"job_id"`
	SessionID     string `json:"session_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFFinalizeTask 构造一个新的最终 PDF 编译任务。
func NewPDFFinalizeTask(jobID uint, sessionID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PDFFinalizePayload{
		JobID:         jobID,
		SessionID:     sessionID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFFinalize, payload), nil
}
