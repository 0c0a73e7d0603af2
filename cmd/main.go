package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/multimodal-rag/api"
	"github.com/fyerfyer/multimodal-rag/api/handler"
	"github.com/fyerfyer/multimodal-rag/api/middleware"
	"github.com/fyerfyer/multimodal-rag/config"
	"github.com/fyerfyer/multimodal-rag/internal/app"
)

// 命令行参数，非零值覆盖配置文件
type flags struct {
	ConfigFile string
	Port       int
	Mode       string
	LogLevel   string
	Queue      bool
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, f)

	// 初始化日志
	logger := config.NewLogger(cfg.Log)
	middleware.SetLogger(logger)
	gin.SetMode(cfg.Server.Mode)
	logger.Info("Starting multimodal RAG service...")

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}
	defer a.Close()

	// 队列启用时同一进程内运行索引工作者
	if err := a.StartWorker(); err != nil {
		logger.Fatalf("Failed to start worker: %v", err)
	}

	docHandler := handler.NewDocumentHandler(a.Ingest, cfg.Server.MaxUploadMB<<20)
	qaHandler := handler.NewQAHandler(a.QA)
	taskHandler := handler.NewTaskHandler(a.Ingest)
	r := api.SetupRouter(docHandler, qaHandler, taskHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.IntVar(&f.Port, "port", 0, "Server port")
	flag.StringVar(&f.Mode, "mode", "", "Run mode (debug/release/test)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	flag.BoolVar(&f.Queue, "queue", false, "Enable async indexing through the task queue")
	flag.Parse()
	return f
}

// applyFlags 命令行上明确给出的参数优先于配置文件
func applyFlags(cfg *config.Config, f flags) {
	if f.Port > 0 {
		cfg.Server.Port = f.Port
	}
	if f.Mode != "" {
		cfg.Server.Mode = f.Mode
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.Queue {
		cfg.Queue.Enable = true
	}
}
