package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository 基于Faiss的持久化向量集合
// 索引保存在<dir>/<collection>.index，记录元数据保存在<dir>/<collection>.meta.json
type FaissRepository struct {
	mu        sync.RWMutex
	index     faiss.Index
	records   []Record // 下标即Faiss中的位置
	indexPath string
	metaPath  string
	dimension int
	distType  DistanceType
}

// faissMeta 持久化的记录元数据
type faissMeta struct {
	Dimension    int          `json:"dimension"`
	DistanceType DistanceType `json:"distance_type"`
	Records      []Record     `json:"records"`
}

// NewFaissRepository 打开或创建Faiss向量集合
func NewFaissRepository(config Config) (Repository, error) {
	if config.Collection == "" {
		return nil, fmt.Errorf("faiss collection name is required")
	}

	base := config.basePath()
	repo := &FaissRepository{
		indexPath: base + ".index",
		metaPath:  base + ".meta.json",
		dimension: config.Dimension,
		distType:  normalizeDistance(config.DistanceType),
	}

	if config.Dir != "" && fileExists(repo.indexPath) {
		if err := repo.load(); err != nil {
			return nil, err
		}
		if config.Dimension > 0 && config.Dimension != repo.dimension {
			return nil, fmt.Errorf("%w: collection has %d, requested %d", ErrInvalidDimension, repo.dimension, config.Dimension)
		}
		return repo, nil
	}

	if config.Dimension <= 0 {
		return nil, ErrMissingDimension
	}
	index, err := createFaissIndex(config.Dimension, repo.distType)
	if err != nil {
		return nil, fmt.Errorf("failed to create faiss index: %w", err)
	}
	repo.index = index
	return repo, nil
}

// createFaissIndex 创建Faiss索引
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	metric := faiss.MetricInnerProduct
	if distType == Euclidean {
		metric = faiss.MetricL2
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// AddBatch 批量追加记录
func (r *FaissRepository) AddBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	flat := make([]float32, 0, len(records)*r.dimension)
	prepared := make([]Record, len(records))
	for i, rec := range records {
		if err := ValidateVector(rec.Vector, r.dimension); err != nil {
			return err
		}
		vec := rec.Vector
		if r.distType == Cosine {
			vec = normalizeVector(vec)
		}
		flat = append(flat, vec...)

		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		// 向量由索引保存，元数据中不重复存储
		rec.Vector = nil
		prepared[i] = rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index == nil {
		return ErrClosed
	}
	if err := r.index.Add(flat); err != nil {
		return fmt.Errorf("failed to add vectors to index: %w", err)
	}
	r.records = append(r.records, prepared...)
	return nil
}

// Search 相似度搜索
func (r *FaissRepository) Search(vector []float32, k int) ([]Hit, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// 网关关闭后，旧句柄上的检索直接失败
	if r.index == nil {
		return nil, ErrClosed
	}
	total := len(r.records)
	if total == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if k > total {
		k = total
	}

	distances, labels, err := r.index.Search(vector, int64(k))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	hits := make([]Hit, 0, len(labels))
	for i, label := range labels {
		if label < 0 || int(label) >= total {
			continue
		}
		score := distances[i]
		if r.distType == Euclidean {
			score = L2ToScore(score)
		}
		hits = append(hits, Hit{Record: r.records[label], Score: score})
	}
	sortHits(hits)
	return hits, nil
}

// Count 记录总数
func (r *FaissRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Dimension 向量维数
func (r *FaissRepository) Dimension() int {
	return r.dimension
}

// Save 保存索引和记录元数据
func (r *FaissRepository) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save()
}

func (r *FaissRepository) save() error {
	if r.index == nil {
		return ErrClosed
	}
	if err := os.MkdirAll(filepath.Dir(r.indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(faissMeta{
		Dimension:    r.dimension,
		DistanceType: r.distType,
		Records:      r.records,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// load 从文件加载索引和记录元数据
func (r *FaissRepository) load() error {
	index, err := faiss.ReadIndex(r.indexPath, 0)
	if err != nil {
		return fmt.Errorf("failed to read index file: %w", err)
	}

	data, err := os.ReadFile(r.metaPath)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %w", err)
	}
	var meta faissMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if int64(len(meta.Records)) != index.Ntotal() {
		return fmt.Errorf("index has %d vectors but metadata has %d records", index.Ntotal(), len(meta.Records))
	}

	r.index = index
	r.records = meta.Records
	r.dimension = index.D()
	if meta.DistanceType != "" {
		r.distType = meta.DistanceType
	}
	return nil
}

// Reset 清空索引并删除持久化文件
func (r *FaissRepository) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index == nil {
		return ErrClosed
	}
	if err := r.index.Reset(); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	r.records = nil

	for _, path := range []string{r.indexPath, r.metaPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// Close 释放索引
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		r.index.Delete()
		r.index = nil
	}
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	RegisterBackend("faiss", Backend{
		New: NewFaissRepository,
		Exists: func(config Config) bool {
			if config.Dir == "" || config.Collection == "" {
				return false
			}
			return fileExists(config.basePath() + ".index")
		},
	})
}
