package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskIndexFiles 解析已上传文件并写入索引
	TaskIndexFiles TaskType = "index:files"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Done 任务是否已结束
func (s TaskStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task 任务记录，保存在Redis中供状态查询
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	Collection  string          `json:"collection"`   // 目标索引集合
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷
	Result      json.RawMessage `json:"result"`       // 任务结果
	Error       string          `json:"error"`        // 错误信息
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 已处理次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// IndexFilesPayload 索引任务载荷
// 文件已经保存在上传存储中，任务只携带登记表ID
type IndexFilesPayload struct {
	FileIDs    []string `json:"file_ids"`   // 文件登记表ID
	Collection string   `json:"collection"` // 目标集合
	Rebuild    bool     `json:"rebuild"`    // 是否先清空集合
	Force      bool     `json:"force"`      // 是否重新处理已索引的相同文件
}
