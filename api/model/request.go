package model

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 当前页的起始偏移量
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// UploadRequest 文档上传的表单参数，文件本身通过files字段提交
type UploadRequest struct {
	Force   bool `form:"force"`   // 重新处理已索引过的相同文件
	Rebuild bool `form:"rebuild"` // 清空集合后重建
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	Status   string `form:"status" binding:"omitempty,oneof=uploaded processing indexed skipped failed removed"` // 状态过滤
	FileName string `form:"filename"`                                                                     // 文件名模糊匹配
}

// DocumentRequest 单个文档请求
type DocumentRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}

// QARequest 问答请求
type QARequest struct {
	Question string `json:"question" binding:"required"` // 问题内容
}

// TaskRequest 任务查询请求
type TaskRequest struct {
	ID string `uri:"id" binding:"required"` // 任务ID
}
