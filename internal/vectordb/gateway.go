package vectordb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/embedding"
	"github.com/fyerfyer/multimodal-rag/internal/models"
)

// DefaultSearchK 未指定k时返回的结果数
const DefaultSearchK = 5

// GatewayConfig 索引网关配置
type GatewayConfig struct {
	Backend      string       // 后端类型，"faiss"或"memory"
	Dir          string       // 持久化目录
	Collection   string       // 集合名称
	DistanceType DistanceType // 距离计算类型
	DefaultK     int          // 默认检索数量
	BatchSize    int          // 向量化批大小
	Workers      int          // 向量化并发数
}

// DefaultGatewayConfig 返回默认网关配置
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Backend:      "faiss",
		Dir:          "./persist/faiss_db_prod",
		Collection:   "multi_rag",
		DistanceType: Cosine,
		DefaultK:     DefaultSearchK,
		BatchSize:    16,
		Workers:      4,
	}
}

// Stats 集合统计信息
type Stats struct {
	Collection string `json:"collection"`
	Backend    string `json:"backend"`
	Vectors    int    `json:"vectors"`
	Dimension  int    `json:"dimension"`
	Exists     bool   `json:"exists"`
}

// Gateway 向量索引网关
// 负责构建、打开和检索指定集合，构建操作互斥执行
type Gateway struct {
	cfg      GatewayConfig
	embedder embedding.Client
	batch    *embedding.BatchProcessor
	logger   *logrus.Logger

	buildMu sync.Mutex
	repoMu  sync.RWMutex
	repo    Repository
}

// GatewayOption 网关配置选项
type GatewayOption func(*Gateway)

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway 创建索引网关
func NewGateway(cfg GatewayConfig, embedder embedding.Client, opts ...GatewayOption) (*Gateway, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding client is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultSearchK
	}
	cfg.DistanceType = normalizeDistance(cfg.DistanceType)

	g := &Gateway{
		cfg:      cfg,
		embedder: embedder,
		batch:    embedding.NewBatchProcessor(embedder, cfg.BatchSize, cfg.Workers),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Collection 集合名称
func (g *Gateway) Collection() string {
	return g.cfg.Collection
}

func (g *Gateway) repoConfig(dimension int) Config {
	return Config{
		Type:         g.cfg.Backend,
		Dir:          g.cfg.Dir,
		Collection:   g.cfg.Collection,
		Dimension:    dimension,
		DistanceType: g.cfg.DistanceType,
	}
}

// Build 向量化分块并追加到集合，返回可检索的句柄
// 已有集合会被扩展而不是替换
func (g *Gateway) Build(ctx context.Context, chunks []document.Chunk) (*Handle, error) {
	g.buildMu.Lock()
	defer g.buildMu.Unlock()
	return g.build(ctx, chunks, false)
}

// Rebuild 用新的分块替换集合内容
// 向量化失败时原有集合保持不变
func (g *Gateway) Rebuild(ctx context.Context, chunks []document.Chunk) (*Handle, error) {
	g.buildMu.Lock()
	defer g.buildMu.Unlock()
	return g.build(ctx, chunks, true)
}

func (g *Gateway) build(ctx context.Context, chunks []document.Chunk, reset bool) (*Handle, error) {
	if len(chunks) == 0 {
		return nil, models.NewIndexError(g.cfg.Collection, models.ErrEmptyChunks)
	}
	start := time.Now()

	records, dimension, err := g.embed(ctx, chunks)
	if err != nil {
		return nil, models.NewIndexError(g.cfg.Collection, err)
	}

	repo, err := g.current()
	if err != nil {
		return nil, models.NewIndexError(g.cfg.Collection, err)
	}
	if repo != nil && reset {
		if err := repo.Reset(); err != nil {
			return nil, models.NewIndexError(g.cfg.Collection, err)
		}
		g.logger.WithField("collection", g.cfg.Collection).Info("Collection reset before rebuild")
	}
	if repo == nil {
		repo, err = NewRepository(g.repoConfig(dimension))
		if err != nil {
			return nil, models.NewIndexError(g.cfg.Collection, err)
		}
		g.setRepo(repo)
	}

	if err := repo.AddBatch(records); err != nil {
		return nil, models.NewIndexError(g.cfg.Collection, err)
	}
	if err := repo.Save(); err != nil {
		return nil, models.NewIndexError(g.cfg.Collection, err)
	}

	g.logger.WithFields(logrus.Fields{
		"collection": g.cfg.Collection,
		"added":      len(records),
		"total":      repo.Count(),
		"rebuild":    reset,
		"elapsed":    time.Since(start).String(),
	}).Info("Index built")

	return g.handle(repo), nil
}

// embed 向量化分块，跳过返回空向量的分块
func (g *Gateway) embed(ctx context.Context, chunks []document.Chunk) ([]Record, int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := g.batch.Process(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("embedding failed: %w", err)
	}

	records := make([]Record, 0, len(chunks))
	dimension := 0
	for i, vec := range vectors {
		if len(vec) == 0 {
			continue
		}
		if dimension == 0 {
			dimension = len(vec)
		}
		records = append(records, Record{
			ID:     uuid.New().String(),
			Chunk:  chunks[i],
			Vector: vec,
		})
	}
	if len(records) == 0 {
		return nil, 0, models.ErrEmptyChunks
	}
	return records, dimension, nil
}

// Open 打开已有集合，集合不存在时返回(nil, nil)
func (g *Gateway) Open(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := g.current()
	if err != nil {
		return nil, models.NewIndexError(g.cfg.Collection, err)
	}
	if repo == nil || repo.Count() == 0 {
		return nil, nil
	}
	return g.handle(repo), nil
}

// Stats 返回集合统计信息
func (g *Gateway) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Collection: g.cfg.Collection, Backend: g.cfg.Backend}
	handle, err := g.Open(ctx)
	if err != nil || handle == nil {
		return stats, err
	}
	stats.Exists = true
	stats.Vectors = handle.Count()
	stats.Dimension = handle.repo.Dimension()
	return stats, nil
}

// Close 关闭底层集合
func (g *Gateway) Close() error {
	g.repoMu.Lock()
	defer g.repoMu.Unlock()
	if g.repo == nil {
		return nil
	}
	err := g.repo.Close()
	g.repo = nil
	return err
}

// current 返回已加载的集合，必要时从持久化数据加载
func (g *Gateway) current() (Repository, error) {
	g.repoMu.RLock()
	repo := g.repo
	g.repoMu.RUnlock()
	if repo != nil {
		return repo, nil
	}

	cfg := g.repoConfig(0)
	if !Persisted(cfg) {
		return nil, nil
	}

	g.repoMu.Lock()
	defer g.repoMu.Unlock()
	if g.repo != nil {
		return g.repo, nil
	}
	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err
	}
	g.repo = repo
	g.logger.WithFields(logrus.Fields{
		"collection": g.cfg.Collection,
		"vectors":    repo.Count(),
	}).Info("Collection loaded from disk")
	return repo, nil
}

func (g *Gateway) setRepo(repo Repository) {
	g.repoMu.Lock()
	g.repo = repo
	g.repoMu.Unlock()
}

func (g *Gateway) handle(repo Repository) *Handle {
	return &Handle{
		repo:       repo,
		embedder:   g.embedder,
		collection: g.cfg.Collection,
		defaultK:   g.cfg.DefaultK,
	}
}

// Handle 已打开集合的检索句柄，可并发使用
type Handle struct {
	repo       Repository
	embedder   embedding.Client
	collection string
	defaultK   int
}

// Search 检索与查询最相似的分块，按相似度降序
// k<=0时使用默认值，集合较小时返回的数量少于k
func (h *Handle) Search(ctx context.Context, query string, k int) ([]document.Chunk, error) {
	if k <= 0 {
		k = h.defaultK
	}

	vector, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, models.NewIndexError(h.collection, fmt.Errorf("query embedding failed: %w", err))
	}

	hits, err := h.repo.Search(vector, k)
	if err != nil {
		return nil, models.NewIndexError(h.collection, err)
	}

	chunks := make([]document.Chunk, len(hits))
	for i, hit := range hits {
		chunks[i] = hit.Record.Chunk
	}
	return chunks, nil
}

// Count 集合中的向量数
func (h *Handle) Count() int {
	return h.repo.Count()
}

// Collection 集合名称
func (h *Handle) Collection() string {
	return h.collection
}
