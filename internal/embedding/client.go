package embedding

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Client 把文本映射为向量
// 查询和分块必须使用同一个Client，否则向量不可比较
type Client interface {
	// Embed 生成查询文本的向量
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch 批量生成分块文本的向量，结果与输入一一对应
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name 返回模型名称
	Name() string
}

// 内置的提供商
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderRemote = "remote"
)

// defaultModels 各提供商未指定模型时使用的模型
var defaultModels = map[string]string{
	ProviderGemini: "text-embedding-004",
	ProviderOpenAI: "text-embedding-3-small",
	ProviderRemote: "text-embedding-004",
}

// DefaultModel 返回提供商的默认模型，未知提供商返回空字符串
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// Config 嵌入客户端配置
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string        // 为空时使用提供商默认地址
	Model      string
	Timeout    time.Duration // 单次请求超时
	MaxRetries int           // 限流时的最大重试次数
	Dimensions int           // 输出维度，0表示模型默认值
	BatchSize  int           // 单次请求的最大文本数
}

// Option 配置选项，零值参数不覆盖默认值
type Option func(*Config)

func WithAPIKey(apiKey string) Option {
	return func(c *Config) { c.APIKey = apiKey }
}

func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

func WithModel(model string) Option {
	return func(c *Config) {
		if model != "" {
			c.Model = model
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithMaxRetries 设置重试次数，0表示不重试
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.MaxRetries = retries
		}
	}
}

func WithDimensions(dimensions int) Option {
	return func(c *Config) {
		if dimensions > 0 {
			c.Dimensions = dimensions
		}
	}
}

func WithBatchSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.BatchSize = size
		}
	}
}

// NewConfig 以提供商的默认值为基础应用选项
func NewConfig(provider string, opts ...Option) *Config {
	cfg := &Config{
		Provider:   provider,
		Model:      DefaultModel(provider),
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		BatchSize:  16,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Factory 创建某个提供商的客户端
type Factory func(opts ...Option) (Client, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterClient 注册提供商，同名注册会覆盖
func RegisterClient(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Providers 返回已注册的提供商名称
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient 创建指定提供商的客户端，name为空时使用gemini
func NewClient(name string, opts ...Option) (Client, error) {
	if name == "" {
		name = ProviderGemini
	}
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			"unknown embedding provider "+name+", registered: "+strings.Join(Providers(), ", "))
	}
	return factory(opts...)
}
