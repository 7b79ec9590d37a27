package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CompileJob 状态机：pending -> processing -> completed / failed。
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// CompileJob 表示一次异步的最终 PDF 编译任务。
// Payload 保存入队时的文档快照，worker 据此渲染并编译。
type CompileJob struct {
	gorm.Model
	SessionID     string         `gorm:"index;size:64"`
	CorrelationID string         `gorm:"size:64"`
	Payload       datatypes.JSON `gorm:"type:jsonb"`
	Status        string         `gorm:"size:32;default:pending"`
	ObjectKey     string         `gorm:"size:512"`
	ErrorMessage  string         `gorm:"size:1024"`
}
