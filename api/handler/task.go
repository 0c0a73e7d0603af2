package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/multimodal-rag/api/middleware"
	"github.com/fyerfyer/multimodal-rag/api/model"
	"github.com/fyerfyer/multimodal-rag/internal/services"
)

// TaskHandler 查询异步索引任务
type TaskHandler struct {
	ingest *services.IngestService
}

// NewTaskHandler 创建新的任务处理器
func NewTaskHandler(ingest *services.IngestService) *TaskHandler {
	return &TaskHandler{ingest: ingest}
}

// GetTask 查询任务状态
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	var req model.TaskRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("task id is required"))
		return
	}

	info, err := h.ingest.TaskStatus(c.Request.Context(), req.ID)
	if errors.Is(err, services.ErrAsyncDisabled) {
		middleware.HandleError(c, middleware.NewNotFoundError(err.Error()))
		return
	}
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(info))
}
