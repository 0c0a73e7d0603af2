package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/multimodal-rag/api/handler"
	"github.com/fyerfyer/multimodal-rag/api/middleware"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	docHandler *handler.DocumentHandler,
	qaHandler *handler.QAHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	router := gin.New()

	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.RequestBodyLog())
	router.Use(Cors())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	api := router.Group("/api")
	{
		docGroup := api.Group("/documents")
		{
			// 上传并索引文档 - POST /api/documents
			docGroup.POST("", docHandler.UploadDocuments)

			// 获取文档列表 - GET /api/documents
			docGroup.GET("", docHandler.ListDocuments)

			// 获取文档状态 - GET /api/documents/:id
			docGroup.GET("/:id", docHandler.GetDocument)
		}

		// 索引统计 - GET /api/index/stats
		api.GET("/index/stats", docHandler.IndexStats)

		// 回答问题 - POST /api/qa
		api.POST("/qa", qaHandler.AnswerQuestion)

		// 异步任务状态 - GET /api/tasks/:id
		api.GET("/tasks/:id", taskHandler.GetTask)

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
