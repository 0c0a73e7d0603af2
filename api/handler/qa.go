package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/multimodal-rag/api/middleware"
	"github.com/fyerfyer/multimodal-rag/api/model"
	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/internal/services"
)

// QAHandler 处理问答相关的API请求
type QAHandler struct {
	qaService *services.QAService // 问答服务
	logger    *logrus.Logger      // 日志记录器
}

// NewQAHandler 创建新的问答处理器
func NewQAHandler(qaService *services.QAService) *QAHandler {
	return &QAHandler{
		qaService: qaService,
		logger:    middleware.GetLogger(),
	}
}

// AnswerQuestion 处理问答请求
// POST /api/qa
// 还没有索引时不视为错误，返回提示先上传文档的回答
func (h *QAHandler) AnswerQuestion(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, models.NewInputError("question", models.ErrEmptyQuestion))
		return
	}

	result, err := h.qaService.Answer(c.Request.Context(), req.Question)
	if errors.Is(err, models.ErrIndexNotFound) {
		h.logger.Info("Question received before any documents were indexed")
		c.JSON(http.StatusOK, model.NewSuccessResponse(model.QAResponse{
			Question: req.Question,
			Answer:   model.NoIndexAnswer,
			Sources:  []document.SourceRef{},
		}))
		return
	}
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.QAResponse{
		Question: req.Question,
		Answer:   result.Answer,
		Sources:  result.Sources,
		Indexed:  true,
	}))
}
