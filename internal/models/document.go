package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FileStatus 已上传文件的处理状态
type FileStatus string

const (
	// FileStatusUploaded 文件已保存，等待处理
	FileStatusUploaded FileStatus = "uploaded"
	// FileStatusProcessing 文件解析和索引中
	FileStatusProcessing FileStatus = "processing"
	// FileStatusIndexed 文件内容已写入索引
	FileStatusIndexed FileStatus = "indexed"
	// FileStatusSkipped 与已索引文件相同，跳过处理
	FileStatusSkipped FileStatus = "skipped"
	// FileStatusFailed 解析或索引失败
	FileStatusFailed FileStatus = "failed"
	// FileStatusRemoved 集合重建后内容已不在索引中
	FileStatusRemoved FileStatus = "removed"
)

// fileTransitions 允许的状态迁移
var fileTransitions = map[FileStatus][]FileStatus{
	FileStatusUploaded:   {FileStatusProcessing, FileStatusSkipped, FileStatusFailed},
	FileStatusProcessing: {FileStatusIndexed, FileStatusFailed},
	FileStatusIndexed:    {FileStatusProcessing, FileStatusRemoved},
	FileStatusSkipped:    {FileStatusProcessing},
	FileStatusFailed:     {FileStatusProcessing},
	FileStatusRemoved:    {FileStatusProcessing},
}

// Valid 是否为已知状态
func (s FileStatus) Valid() bool {
	_, ok := fileTransitions[s]
	return ok
}

// CanTransitionTo 判断能否从当前状态迁移到目标状态
func (s FileStatus) CanTransitionTo(next FileStatus) bool {
	for _, allowed := range fileTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IngestedFile 已处理文件登记表
// 以清洗后的文件名和内容SHA-256识别重复上传
type IngestedFile struct {
	ID          string         `gorm:"primaryKey"`                         // 记录ID
	FileName    string         `gorm:"not null"`                           // 原始文件名
	Source      string         `gorm:"not null;index:idx_source_checksum"` // 清洗后的文件名，即检索结果中的来源
	Checksum    string         `gorm:"not null;index:idx_source_checksum"` // 内容SHA-256
	ContentType string         `gorm:"size:20"`                            // 内容类型
	FileSize    int64          `gorm:"not null;default:0"`                 // 文件大小（字节）
	StoragePath string         `gorm:"type:text"`                          // 上传存储中的路径
	Collection  string         `gorm:"size:100;index"`                     // 写入的索引集合
	Status      FileStatus     `gorm:"not null;index"`                     // 处理状态
	PageCount   int            `gorm:"not null;default:0"`                 // 解析出的页数
	ChunkCount  int            `gorm:"not null;default:0"`                 // 生成的分块数
	Error       string         `gorm:"type:text"`                          // 错误信息
	TaskID      string         `gorm:"size:50;index"`                      // 异步任务ID
	Metadata    datatypes.JSON `gorm:"type:json"`                          // 附加元数据
	UploadedAt  time.Time      `gorm:"not null;index"`                     // 上传时间
	IndexedAt   *time.Time     `gorm:"index"`                              // 索引完成时间
	UpdatedAt   time.Time      `gorm:"not null"`                           // 更新时间
}

// BeforeCreate 创建前设置时间
func (f *IngestedFile) BeforeCreate(tx *gorm.DB) (err error) {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now()
	}
	if f.Status == "" {
		f.Status = FileStatusUploaded
	}
	f.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate 更新前刷新更新时间
func (f *IngestedFile) BeforeUpdate(tx *gorm.DB) (err error) {
	f.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (IngestedFile) TableName() string {
	return "ingested_files"
}
