// Package app 根据配置组装索引和问答所需的全部组件
// HTTP服务和命令行工具共用这一套装配逻辑
package app

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/fyerfyer/multimodal-rag/config"
	"github.com/fyerfyer/multimodal-rag/internal/cache"
	"github.com/fyerfyer/multimodal-rag/internal/database"
	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/embedding"
	"github.com/fyerfyer/multimodal-rag/internal/llm"
	"github.com/fyerfyer/multimodal-rag/internal/provider"
	"github.com/fyerfyer/multimodal-rag/internal/repository"
	"github.com/fyerfyer/multimodal-rag/internal/rerank"
	"github.com/fyerfyer/multimodal-rag/internal/services"
	"github.com/fyerfyer/multimodal-rag/internal/vectordb"
	"github.com/fyerfyer/multimodal-rag/pkg/storage"
	"github.com/fyerfyer/multimodal-rag/pkg/taskqueue"
)

// App 已装配的应用组件
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	DB      *gorm.DB
	Storage storage.Storage
	Gateway *vectordb.Gateway
	Ingest  *services.IngestService
	QA      *services.QAService
	Queue   *taskqueue.RedisQueue

	worker *taskqueue.RedisWorker
}

// New 按配置创建所有组件，任何一步失败都会释放已创建的资源
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = config.NewLogger(cfg.Log)
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.init(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.Config

	dbCfg := database.DefaultConfig()
	dbCfg.Type = cfg.Database.Type
	dbCfg.DSN = cfg.Database.DSN
	db, err := database.Open(dbCfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db

	a.Storage, err = storage.New(storage.Config{
		Type:  cfg.Storage.Type,
		Local: storage.LocalConfig{Path: cfg.Storage.Path},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := newEmbedder(cfg.Embed)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	a.Gateway, err = vectordb.NewGateway(vectordb.GatewayConfig{
		Backend:      cfg.Index.Backend,
		Dir:          cfg.Index.Dir,
		Collection:   cfg.Index.Collection,
		DistanceType: vectordb.DistanceType(cfg.Index.Distance),
		DefaultK:     cfg.Retrieval.K,
		BatchSize:    cfg.Index.BatchSize,
		Workers:      cfg.Index.Workers,
	}, embedder, vectordb.WithLogger(a.Logger))
	if err != nil {
		return fmt.Errorf("failed to initialize index gateway: %w", err)
	}

	var answers *cache.AnswerCache
	if cfg.Cache.Enable {
		c, err := cache.NewCache(cache.Config{
			Type:          cfg.Cache.Type,
			RedisAddr:     cfg.Cache.Address,
			RedisPassword: cfg.Cache.Password,
			RedisDB:       cfg.Cache.DB,
			KeyPrefix:     cfg.Cache.KeyPrefix,
			DefaultTTL:    cfg.Cache.TTL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize cache: %w", err)
		}
		answers = cache.NewAnswerCache(c, cfg.Cache.TTL)
	}

	router, err := a.newRouter()
	if err != nil {
		return err
	}
	chunker, err := document.NewChunker(document.ChunkConfig{
		Size:    cfg.Chunk.Size,
		Overlap: cfg.Chunk.Overlap,
		Dedupe:  cfg.Chunk.Dedupe,
	})
	if err != nil {
		return fmt.Errorf("invalid chunk config: %w", err)
	}

	a.Ingest = services.NewIngestService(router, chunker, a.Gateway,
		services.WithStorage(a.Storage),
		services.WithFileRepository(repository.NewFileRepository(db)),
		services.WithIngestAnswerCache(answers),
		services.WithParseTimeout(cfg.Parser.Timeout),
		services.WithIngestLogger(a.Logger),
	)

	rewriteClient, err := newLLM(cfg.LLM, cfg.LLM.RewriteModel)
	if err != nil {
		return fmt.Errorf("failed to initialize rewrite model: %w", err)
	}
	answerClient, err := newLLM(cfg.LLM, cfg.LLM.AnswerModel)
	if err != nil {
		return fmt.Errorf("failed to initialize answer model: %w", err)
	}
	reranker, err := rerank.New(rerank.Config{
		Type:    cfg.Rerank.Type,
		BaseURL: cfg.Rerank.BaseURL,
		APIKey:  cfg.Rerank.APIKey,
		Model:   cfg.Rerank.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize reranker: %w", err)
	}

	retrieval := services.NewRetrievalPipeline(llm.NewQueryRewriter(rewriteClient), reranker,
		services.WithSearchK(cfg.Retrieval.K),
		services.WithTopN(cfg.Retrieval.TopN),
		services.WithMinScore(cfg.Retrieval.MinScore),
		services.WithRerankTimeout(cfg.Retrieval.RerankTimeout),
		services.WithRetrievalLogger(a.Logger),
	)
	synthesizer := llm.NewSynthesizer(answerClient,
		llm.WithAnswerMaxTokens(cfg.LLM.MaxTokens),
		llm.WithAnswerTemperature(cfg.LLM.Temperature),
		llm.WithAnswerTimeout(cfg.LLM.Timeout),
	)
	a.QA = services.NewQAService(a.Gateway, retrieval, synthesizer,
		services.WithAnswerCache(answers),
		services.WithQALogger(a.Logger),
	)

	if cfg.Queue.Enable {
		a.Queue, err = taskqueue.NewRedisQueue(a.queueConfig(), a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		if err := a.Ingest.EnableAsync(a.Queue); err != nil {
			return err
		}
	}

	a.Logger.WithFields(logrus.Fields{
		"collection": cfg.Index.Collection,
		"backend":    cfg.Index.Backend,
		"embedding":  embedder.Name(),
		"reranker":   reranker.Name(),
		"layout":     router.HasLayoutParser(),
		"async":      a.Ingest.AsyncEnabled(),
	}).Info("Components initialized")
	return nil
}

// newRouter 创建文件解析路由，启用版面解析服务时PDF和图片交给外部服务
func (a *App) newRouter() (*document.Router, error) {
	pc := a.Config.Parser
	if !pc.Enable {
		return document.NewRouter(nil), nil
	}

	client, err := provider.NewClient(provider.DefaultConfig().
		WithBaseURL(pc.BaseURL).
		WithAPIKey(pc.APIKey).
		WithTimeout(pc.Timeout).
		WithRetry(pc.MaxRetries, provider.DefaultConfig().RetryDelay), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize layout parser: %w", err)
	}
	parser := provider.NewParserClient(client,
		provider.WithInstruction(pc.Instruction),
		provider.WithVisionModel(pc.VisionModel),
		provider.WithLanguage(pc.Language),
	)
	return document.NewRouter(document.NewLayoutParser(parser)), nil
}

func (a *App) queueConfig() *taskqueue.Config {
	qc := a.Config.Queue
	return &taskqueue.Config{
		RedisAddr:     qc.RedisAddr,
		RedisPassword: qc.RedisPassword,
		RedisDB:       qc.RedisDB,
		QueueName:     qc.Name,
		Concurrency:   qc.Concurrency,
		RetryLimit:    qc.RetryLimit,
		RetryDelay:    qc.RetryDelay,
		Timeout:       qc.Timeout,
	}
}

// StartWorker 启动异步索引工作者，未启用队列时什么也不做
func (a *App) StartWorker() error {
	if a.Queue == nil {
		return nil
	}
	a.worker = taskqueue.NewRedisWorker(a.Queue, a.queueConfig())
	a.worker.RegisterHandler(taskqueue.TaskIndexFiles, a.Ingest)
	if err := a.worker.Start(); err != nil {
		a.worker = nil
		return fmt.Errorf("failed to start index worker: %w", err)
	}
	a.Logger.WithField("concurrency", a.Config.Queue.Concurrency).Info("Index worker started")
	return nil
}

// Close 按创建的逆序释放资源
func (a *App) Close() error {
	var errs []error
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Gateway != nil {
		errs = append(errs, a.Gateway.Close())
	}
	if a.DB != nil {
		errs = append(errs, database.Close(a.DB))
	}
	return errors.Join(errs...)
}

func newEmbedder(ec config.EmbedConfig) (embedding.Client, error) {
	opts := []embedding.Option{
		embedding.WithAPIKey(ec.APIKey),
		embedding.WithModel(ec.Model),
		embedding.WithDimensions(ec.Dimensions),
		embedding.WithBatchSize(ec.BatchSize),
	}
	if ec.BaseURL != "" {
		opts = append(opts, embedding.WithBaseURL(ec.BaseURL))
	}
	if ec.Timeout > 0 {
		opts = append(opts, embedding.WithTimeout(ec.Timeout))
	}
	client, err := embedding.NewClient(ec.Provider, opts...)
	if err != nil {
		return nil, err
	}
	client = embedding.WithRateLimit(client, ec.RateLimit, ec.RateBurst)
	return embedding.WithQueryCache(client, ec.CacheSize, ec.CacheTTL), nil
}

func newLLM(lc config.LLMConfig, model string) (llm.Client, error) {
	opts := []llm.Option{
		llm.WithAPIKey(lc.APIKey),
		llm.WithModel(model),
		llm.WithMaxTokens(lc.MaxTokens),
		llm.WithTemperature(lc.Temperature),
	}
	if lc.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(lc.BaseURL))
	}
	if lc.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(lc.Timeout))
	}
	return llm.NewClient(lc.Provider, opts...)
}
