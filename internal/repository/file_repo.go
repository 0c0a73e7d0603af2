package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fyerfyer/multimodal-rag/internal/models"
)

// fileRepository 基于GORM的文件登记仓储
type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建文件登记仓储
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

// Create 创建文件记录
func (r *fileRepository) Create(file *models.IngestedFile) error {
	if file.ID == "" {
		return errors.New("file ID cannot be empty")
	}
	return r.db.Create(file).Error
}

// Update 保存文件记录
func (r *fileRepository) Update(file *models.IngestedFile) error {
	if file.ID == "" {
		return errors.New("file ID cannot be empty")
	}
	return r.db.Save(file).Error
}

// GetByID 根据ID获取文件记录
func (r *fileRepository) GetByID(id string) (*models.IngestedFile, error) {
	var file models.IngestedFile
	err := r.db.Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil, err
	}
	return &file, nil
}

// FindIndexed 查找已索引的相同文件
func (r *fileRepository) FindIndexed(collection, source, checksum string) (*models.IngestedFile, error) {
	var file models.IngestedFile
	err := r.db.
		Where("collection = ? AND source = ? AND checksum = ? AND status = ?",
			collection, source, checksum, models.FileStatusIndexed).
		Order("indexed_at DESC").
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDocumentNotFound
		}
		return nil, err
	}
	return &file, nil
}

// List 分页列出文件记录
func (r *fileRepository) List(offset, limit int, filter FileFilter) ([]*models.IngestedFile, int64, error) {
	var files []*models.IngestedFile
	var total int64

	query := r.db.Model(&models.IngestedFile{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Collection != "" {
		query = query.Where("collection = ?", filter.Collection)
	}
	if filter.FileName != "" {
		query = query.Where("file_name LIKE ?", "%"+filter.FileName+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	err := query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

// UpdateStatus 更新文件状态
func (r *fileRepository) UpdateStatus(id string, status models.FileStatus, errorMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", models.ErrInvalidDocumentStatus, status)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var file models.IngestedFile
		if err := tx.Where("id = ?", id).First(&file).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
			}
			return err
		}
		if file.Status != status && !file.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidDocumentStatus, file.Status, status)
		}

		updates := map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}
		if errorMsg != "" {
			updates["error"] = errorMsg
		}
		return tx.Model(&models.IngestedFile{}).Where("id = ?", id).Updates(updates).Error
	})
}

// MarkIndexed 标记文件已写入索引
func (r *fileRepository) MarkIndexed(id string, pages, chunks int) error {
	if err := r.UpdateStatus(id, models.FileStatusIndexed, ""); err != nil {
		return err
	}
	now := time.Now()
	return r.db.Model(&models.IngestedFile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"page_count":  pages,
			"chunk_count": chunks,
			"indexed_at":  &now,
			"error":       "",
		}).Error
}

// MarkRemoved 集合重建后，未参与重建的文件不再被视为已索引
func (r *fileRepository) MarkRemoved(collection string, keep []string) (int64, error) {
	query := r.db.Model(&models.IngestedFile{}).
		Where("collection = ? AND status = ?", collection, models.FileStatusIndexed)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	result := query.Updates(map[string]interface{}{
		"status":     models.FileStatusRemoved,
		"updated_at": time.Now(),
	})
	return result.RowsAffected, result.Error
}

// AttachTask 关联异步任务
func (r *fileRepository) AttachTask(ids []string, taskID string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.IngestedFile{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"task_id":    taskID,
			"updated_at": time.Now(),
		}).Error
}

// Delete 删除文件记录
func (r *fileRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.IngestedFile{}).Error
}

// WithContext 创建带有上下文的仓储
func (r *fileRepository) WithContext(ctx context.Context) FileRepository {
	return &fileRepository{db: r.db.WithContext(ctx)}
}
