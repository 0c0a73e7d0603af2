package vectordb

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/fyerfyer/multimodal-rag/internal/document"
)

// 常用错误定义
var (
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
	ErrMissingDimension = errors.New("vector dimension must be positive")
	ErrClosed           = errors.New("collection is closed")
)

// Record 向量集合中的一条记录
// 分块内容与元数据原样保存，检索时直接还原为document.Chunk
type Record struct {
	ID        string         `json:"id"`
	Chunk     document.Chunk `json:"chunk"`
	Vector    []float32      `json:"vector,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// Hit 搜索命中结果
type Hit struct {
	Record Record
	Score  float32 // 相似度得分，越大越相似
}

// Repository 向量集合接口
type Repository interface {
	// AddBatch 批量追加记录
	AddBatch(records []Record) error

	// Search 返回与向量最相似的k条记录，按相似度降序
	Search(vector []float32, k int) ([]Hit, error)

	// Count 记录总数
	Count() int

	// Dimension 向量维数
	Dimension() int

	// Save 持久化，纯内存实现为空操作
	Save() error

	// Reset 清空集合，包括持久化数据
	Reset() error

	// Close 关闭集合
	Close() error
}

// Config 向量集合配置
type Config struct {
	Type         string       // 后端类型，如 "memory", "faiss"
	Dir          string       // 持久化目录
	Collection   string       // 集合名称
	Dimension    int          // 向量维度，为0时从已持久化的索引读取
	DistanceType DistanceType // 距离计算类型
}

// basePath 集合持久化文件的公共前缀
func (c Config) basePath() string {
	return filepath.Join(c.Dir, c.Collection)
}

// Factory 向量集合工厂函数类型
type Factory func(config Config) (Repository, error)

// Backend 已注册的向量集合后端
type Backend struct {
	New    Factory
	Exists func(config Config) bool // 持久化数据是否已存在
}

// backends 注册的后端实现
var backends = map[string]Backend{}

// RegisterBackend 注册向量集合后端
func RegisterBackend(name string, backend Backend) {
	backends[name] = backend
}

// NewRepository 根据配置创建向量集合
func NewRepository(config Config) (Repository, error) {
	backend, ok := backends[config.Type]
	if !ok {
		// 默认使用内存实现
		backend = backends["memory"]
	}
	return backend.New(config)
}

// Persisted 配置所指位置是否已有持久化的集合
func Persisted(config Config) bool {
	backend, ok := backends[config.Type]
	if !ok || backend.Exists == nil {
		return false
	}
	return backend.Exists(config)
}
