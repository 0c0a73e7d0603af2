package model

import (
	"time"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/internal/services"
)

// NoIndexAnswer 还没有索引时问答接口返回的提示
const NoIndexAnswer = "Please upload and index documents first."

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// UploadResponse 文档上传响应
// 同步模式下Report为完整的索引结果，异步模式下只包含登记结果和任务ID
type UploadResponse struct {
	TaskID string                 `json:"task_id,omitempty"`
	Async  bool                   `json:"async"`
	Report *services.IngestReport `json:"report"`
}

// DocumentInfo 文档信息
type DocumentInfo struct {
	FileID      string            `json:"file_id"`
	FileName    string            `json:"filename"`
	Source      string            `json:"source"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Collection  string            `json:"collection"`
	Status      models.FileStatus `json:"status"`
	Pages       int               `json:"pages"`
	Chunks      int               `json:"chunks"`
	Error       string            `json:"error,omitempty"`
	TaskID      string            `json:"task_id,omitempty"`
	UploadedAt  time.Time         `json:"uploaded_at"`
	IndexedAt   *time.Time        `json:"indexed_at,omitempty"`
}

// NewDocumentInfo 从登记记录创建文档信息
func NewDocumentInfo(f *models.IngestedFile) DocumentInfo {
	return DocumentInfo{
		FileID:      f.ID,
		FileName:    f.FileName,
		Source:      f.Source,
		ContentType: f.ContentType,
		Size:        f.FileSize,
		Collection:  f.Collection,
		Status:      f.Status,
		Pages:       f.PageCount,
		Chunks:      f.ChunkCount,
		Error:       f.Error,
		TaskID:      f.TaskID,
		UploadedAt:  f.UploadedAt,
		IndexedAt:   f.IndexedAt,
	}
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// QAResponse 问答响应
type QAResponse struct {
	Question string               `json:"question"` // 用户问题
	Answer   string               `json:"answer"`   // 带引用的回答
	Sources  []document.SourceRef `json:"sources"`  // 来源文件、页码和预览
	Indexed  bool                 `json:"indexed"`  // 是否存在可检索的索引
}
