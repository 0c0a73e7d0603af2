package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/multimodal-rag/api/middleware"
	"github.com/fyerfyer/multimodal-rag/api/model"
	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/internal/repository"
	"github.com/fyerfyer/multimodal-rag/internal/services"
)

// DefaultMaxFileSize 单个上传文件的默认大小上限
const DefaultMaxFileSize int64 = 64 << 20

// DocumentHandler 处理文档相关的API请求
type DocumentHandler struct {
	ingest      *services.IngestService // 索引服务
	maxFileSize int64                   // 单个文件大小上限（字节）
	logger      *logrus.Logger          // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(ingest *services.IngestService, maxFileSize int64) *DocumentHandler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &DocumentHandler{
		ingest:      ingest,
		maxFileSize: maxFileSize,
		logger:      middleware.GetLogger(),
	}
}

// UploadDocuments 上传并索引一批文档
// POST /api/documents
// 启用异步索引时返回202和任务ID，否则同步完成索引后返回报告
func (h *DocumentHandler) UploadDocuments(c *gin.Context) {
	var req model.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid upload options", err.Error()))
		return
	}

	files, err := h.readUploads(c)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	opts := services.IngestOptions{Force: req.Force, Rebuild: req.Rebuild}
	ctx := c.Request.Context()

	if h.ingest.AsyncEnabled() {
		taskID, report, err := h.ingest.Submit(ctx, files, opts)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		status := http.StatusAccepted
		if taskID == "" {
			status = http.StatusOK
		}
		c.JSON(status, model.NewSuccessResponse(model.UploadResponse{TaskID: taskID, Async: true, Report: report}))
		return
	}

	report, err := h.ingest.Ingest(ctx, files, opts)
	if err != nil {
		if report == nil {
			middleware.HandleError(c, err)
			return
		}
		// 已经开始处理时把逐文件结果一并返回
		appErr := middleware.ClassifyError(err)
		h.logger.WithError(err).WithField("files", len(files)).Warn("Upload finished without indexing")
		resp := model.NewErrorResponse(appErr.Code, appErr.Message)
		resp.Data = model.UploadResponse{Report: report}
		resp.TraceID = c.GetString(middleware.TraceIDKey)
		c.JSON(appErr.Code, resp)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.UploadResponse{Report: report}))
}

// readUploads 读取表单中的所有文件，兼容files和file两个字段
func (h *DocumentHandler) readUploads(c *gin.Context) ([]services.UploadFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, models.NewInputError("", models.ErrEmptyUpload)
		}
		return nil, middleware.NewValidationError("invalid multipart form", err.Error())
	}

	headers := append(form.File["files"], form.File["file"]...)
	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxFileSize {
			return nil, middleware.NewValidationError(
				fmt.Sprintf("file %s exceeds the %d MB limit", fh.Filename, h.maxFileSize>>20))
		}
		data, err := readFileHeader(fh)
		if err != nil {
			h.logger.WithError(err).WithField("filename", fh.Filename).Error("Failed to read uploaded file")
			return nil, middleware.NewInternalError("failed to read uploaded file", err.Error())
		}
		files = append(files, services.UploadFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ListDocuments 分页列出已登记的文档
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	files, total, err := h.ingest.ListFiles(c.Request.Context(), req.Offset(), req.GetPageSize(), repository.FileFilter{
		Status:     models.FileStatus(req.Status),
		Collection: h.ingest.Collection(),
		FileName:   req.FileName,
	})
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	docs := make([]model.DocumentInfo, len(files))
	for i, f := range files {
		docs[i] = model.NewDocumentInfo(f)
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     total,
		Page:      req.GetPage(),
		PageSize:  req.GetPageSize(),
		Documents: docs,
	}))
}

// GetDocument 查询单个文档的处理状态
// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	var req model.DocumentRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("document id is required"))
		return
	}

	file, err := h.ingest.GetFile(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewDocumentInfo(file)))
}

// IndexStats 返回集合统计信息
// GET /api/index/stats
func (h *DocumentHandler) IndexStats(c *gin.Context) {
	stats, err := h.ingest.Stats(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(stats))
}
