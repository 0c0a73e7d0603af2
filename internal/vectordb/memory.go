package vectordb

import (
	"runtime"
	"sync"
	"time"
)

// parallelThreshold 记录数超过该值时并行计算相似度
const parallelThreshold = 2000

// MemoryRepository 内存向量集合
// 仅在进程内有效，用于开发、测试和一次性的命令行会话
type MemoryRepository struct {
	mu        sync.RWMutex
	records   []Record
	dimension int
	distType  DistanceType
}

// NewMemoryRepository 创建内存向量集合
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, ErrMissingDimension
	}
	return &MemoryRepository{
		dimension: config.Dimension,
		distType:  normalizeDistance(config.DistanceType),
	}, nil
}

// AddBatch 批量追加记录
func (r *MemoryRepository) AddBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	prepared := make([]Record, len(records))
	for i, rec := range records {
		if err := ValidateVector(rec.Vector, r.dimension); err != nil {
			return err
		}
		if r.distType == Cosine {
			rec.Vector = normalizeVector(rec.Vector)
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		prepared[i] = rec
	}

	r.mu.Lock()
	r.records = append(r.records, prepared...)
	r.mu.Unlock()
	return nil
}

// Search 相似度搜索
func (r *MemoryRepository) Search(vector []float32, k int) ([]Hit, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.records) == 0 || k <= 0 {
		return []Hit{}, nil
	}

	threads := runtime.NumCPU()
	var hits []Hit
	if len(r.records) < parallelThreshold || threads == 1 {
		hits = r.score(vector, r.records)
	} else {
		hits = r.parallelScore(vector, threads)
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (r *MemoryRepository) score(vector []float32, records []Record) []Hit {
	hits := make([]Hit, 0, len(records))
	for _, rec := range records {
		// 维度在写入时已校验，这里不会出错
		score, _ := Similarity(vector, rec.Vector, r.distType)
		hits = append(hits, Hit{Record: rec, Score: score})
	}
	return hits
}

// parallelScore 分段并行计算，按段序拼接以保持稳定顺序
func (r *MemoryRepository) parallelScore(vector []float32, threads int) []Hit {
	per := (len(r.records) + threads - 1) / threads
	parts := make([][]Hit, threads)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		start := i * per
		end := start + per
		if end > len(r.records) {
			end = len(r.records)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(i, start, end int) {
			defer wg.Done()
			parts[i] = r.score(vector, r.records[start:end])
		}(i, start, end)
	}
	wg.Wait()

	hits := make([]Hit, 0, len(r.records))
	for _, part := range parts {
		hits = append(hits, part...)
	}
	return hits
}

// Count 记录总数
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Dimension 向量维数
func (r *MemoryRepository) Dimension() int {
	return r.dimension
}

// Save 内存实现无需持久化
func (r *MemoryRepository) Save() error {
	return nil
}

// Reset 清空集合
func (r *MemoryRepository) Reset() error {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
	return nil
}

// Close 关闭集合
func (r *MemoryRepository) Close() error {
	return nil
}

func init() {
	RegisterBackend("memory", Backend{New: NewMemoryRepository})
}
