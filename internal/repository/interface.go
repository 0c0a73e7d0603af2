package repository

import (
	"context"

	"github.com/fyerfyer/multimodal-rag/internal/models"
)

// FileFilter 文件列表筛选条件
type FileFilter struct {
	Status     models.FileStatus // 按状态过滤
	Collection string            // 按索引集合过滤
	FileName   string            // 文件名模糊匹配
}

// FileRepository 已处理文件登记仓储
// 负责记录上传文件的处理状态，并识别重复上传
type FileRepository interface {
	// Create 创建文件记录
	Create(file *models.IngestedFile) error

	// Update 保存文件记录的全部字段
	Update(file *models.IngestedFile) error

	// GetByID 根据ID获取文件记录
	GetByID(id string) (*models.IngestedFile, error)

	// FindIndexed 查找同一集合中已索引的相同文件，不存在时返回ErrDocumentNotFound
	FindIndexed(collection, source, checksum string) (*models.IngestedFile, error)

	// List 分页列出文件记录，按上传时间倒序
	List(offset, limit int, filter FileFilter) ([]*models.IngestedFile, int64, error)

	// UpdateStatus 更新文件状态，不允许的状态迁移返回ErrInvalidDocumentStatus
	UpdateStatus(id string, status models.FileStatus, errorMsg string) error

	// MarkIndexed 标记文件已写入索引
	MarkIndexed(id string, pages, chunks int) error

	// MarkRemoved 把集合中除keep以外的已索引文件标记为已移出索引，返回受影响的记录数
	MarkRemoved(collection string, keep []string) (int64, error)

	// AttachTask 把异步任务关联到一批文件
	AttachTask(ids []string, taskID string) error

	// Delete 删除文件记录
	Delete(id string) error

	// WithContext 返回绑定上下文的仓储
	WithContext(ctx context.Context) FileRepository
}
