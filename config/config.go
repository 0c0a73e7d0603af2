package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Index     IndexConfig     `mapstructure:"index"`
	Embed     EmbedConfig     `mapstructure:"embed"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Rerank    RerankConfig    `mapstructure:"rerank"`
	Parser    ParserConfig    `mapstructure:"parser"`
	Chunk     ChunkConfig     `mapstructure:"chunk"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb" validate:"min=1"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`        // 为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// StorageConfig 上传文件存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`                              // 本地存储路径
	Bucket    string `mapstructure:"bucket" validate:"required_if=Type minio"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Type minio"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// IndexConfig 向量索引配置
type IndexConfig struct {
	Backend    string `mapstructure:"backend" validate:"oneof=faiss memory"`
	Dir        string `mapstructure:"dir" validate:"required_if=Backend faiss"`
	Collection string `mapstructure:"collection" validate:"required"`
	Distance   string `mapstructure:"distance" validate:"oneof=cosine l2 dot"`
	BatchSize  int    `mapstructure:"batch_size" validate:"min=1"`
	Workers    int    `mapstructure:"workers" validate:"min=1"`
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=gemini openai remote"`
	Model      string        `mapstructure:"model"` // 为空时使用提供商的默认模型
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions" validate:"min=0"`
	BatchSize  int           `mapstructure:"batch_size" validate:"min=1"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheSize  int           `mapstructure:"cache_size" validate:"min=0"` // 查询向量LRU缓存条数，0表示不缓存
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	RateLimit  float64       `mapstructure:"rate_limit" validate:"gte=0"` // 每秒请求数，0表示不限速
	RateBurst  int           `mapstructure:"rate_burst" validate:"min=0"`
}

// LLMConfig 大语言模型配置
// 查询改写和回答生成使用同一提供商的不同模型
type LLMConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=groq openai gemini anthropic"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	RewriteModel string        `mapstructure:"rewrite_model" validate:"required"`
	AnswerModel  string        `mapstructure:"answer_model" validate:"required"`
	MaxTokens    int           `mapstructure:"max_tokens" validate:"min=1"`
	Temperature  float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// RerankConfig 重排序配置
type RerankConfig struct {
	Type    string `mapstructure:"type" validate:"omitempty,oneof=lexical remote"` // 为空时配置了base_url用remote，否则用lexical
	BaseURL string `mapstructure:"base_url" validate:"required_if=Type remote"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// resolveType 未指定类型时，有交叉编码器服务就使用它
func (c *RerankConfig) resolveType() {
	if c.Type != "" {
		return
	}
	c.Type = "lexical"
	if c.BaseURL != "" {
		c.Type = "remote"
	}
}

// ParserConfig 外部版面解析服务配置，未启用时PDF走本地解析，图片不可用
type ParserConfig struct {
	Enable      bool          `mapstructure:"enable"`
	BaseURL     string        `mapstructure:"base_url" validate:"required_if=Enable true"`
	APIKey      string        `mapstructure:"api_key"`
	Instruction string        `mapstructure:"instruction"`
	VisionModel string        `mapstructure:"vision_model"`
	Language    string        `mapstructure:"language"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0"`
}

// ChunkConfig 分块配置
type ChunkConfig struct {
	Size    int  `mapstructure:"size" validate:"min=1"`
	Overlap int  `mapstructure:"overlap" validate:"min=0,ltfield=Size"`
	Dedupe  bool `mapstructure:"dedupe"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	K             int           `mapstructure:"k" validate:"min=1"`
	TopN          int           `mapstructure:"top_n" validate:"min=1"`
	MinScore      float32       `mapstructure:"min_score" validate:"gte=0"`
	RerankTimeout time.Duration `mapstructure:"rerank_timeout"`
}

// CacheConfig 答案缓存配置
type CacheConfig struct {
	Enable    bool          `mapstructure:"enable"`
	Type      string        `mapstructure:"type" validate:"oneof=memory redis"`
	Address   string        `mapstructure:"address" validate:"required_if=Type redis"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// QueueConfig 异步索引队列配置
type QueueConfig struct {
	Enable        bool          `mapstructure:"enable"`
	Type          string        `mapstructure:"type" validate:"oneof=redis"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Enable true"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Name          string        `mapstructure:"name"`
	Concurrency   int           `mapstructure:"concurrency" validate:"min=1"`
	RetryLimit    int           `mapstructure:"retry_limit" validate:"min=0"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 文件登记表数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"oneof=sqlite"`
	DSN  string `mapstructure:"dsn" validate:"required"`
}

// envBindings 兼容旧部署使用的环境变量名
var envBindings = map[string]string{
	"chunk.size":           "CHUNK_SIZE",
	"chunk.overlap":        "CHUNK_OVERLAP",
	"chunk.dedupe":         "DEDUP",
	"retrieval.k":          "RETRIEVAL_K",
	"index.dir":            "PERSIST_DIRECTORY",
	"index.collection":     "CHROMA_COLLECTION_NAME",
	"embed.model":          "EMBEDDING_MODEL",
	"embed.api_key":        "GOOGLE_API_KEY",
	"llm.rewrite_model":    "GROQ_REPHRASE_MODEL",
	"llm.answer_model":     "GROQ_ANSWER_MODEL",
	"llm.api_key":          "GROQ_API_KEY",
	"log.level":            "LOG_LEVEL",
	"parser.api_key":       "LLAMA_CLOUD_API_KEY",
	"queue.redis_addr":     "REDIS_ADDR",
	"queue.redis_password": "REDIS_PASSWORD",
}

// Load 从.env、配置文件和环境变量加载配置
// 配置文件不存在时写出一份默认配置；优先级：环境变量 > 配置文件 > 默认值
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Printf("Warning: Config file not found at %s, using defaults", configPath)
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err == nil {
			if err := v.WriteConfigAs(configPath); err != nil {
				log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandPlaceholders(&cfg)
	cfg.Rerank.resolveType()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// expandPlaceholders 把${VAR}形式的值替换为环境变量
func expandPlaceholders(cfg *Config) {
	fields := []*string{
		&cfg.Embed.APIKey,
		&cfg.LLM.APIKey,
		&cfg.Parser.APIKey,
		&cfg.Rerank.APIKey,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
		&cfg.Database.DSN,
	}
	for _, f := range fields {
		if strings.Contains(*f, "${") {
			*f = os.Expand(*f, os.Getenv)
		}
	}
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.max_upload_mb", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "multimodal-rag")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("index.backend", "faiss")
	v.SetDefault("index.dir", "./persist/faiss_db_prod")
	v.SetDefault("index.collection", "multi_rag")
	v.SetDefault("index.distance", "cosine")
	v.SetDefault("index.batch_size", 16)
	v.SetDefault("index.workers", 4)

	v.SetDefault("embed.provider", "gemini")
	v.SetDefault("embed.model", "")
	v.SetDefault("embed.api_key", "${GOOGLE_API_KEY}")
	v.SetDefault("embed.base_url", "")
	v.SetDefault("embed.dimensions", 0)
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.timeout", "30s")
	v.SetDefault("embed.cache_size", 512)
	v.SetDefault("embed.cache_ttl", "10m")
	v.SetDefault("embed.rate_limit", 0)
	v.SetDefault("embed.rate_burst", 4)

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.api_key", "${GROQ_API_KEY}")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.rewrite_model", "llama-3.1-8b-instant")
	v.SetDefault("llm.answer_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("rerank.type", "")
	v.SetDefault("rerank.base_url", "")
	v.SetDefault("rerank.api_key", "")
	v.SetDefault("rerank.model", "ms-marco-MiniLM-L-12-v2")

	v.SetDefault("parser.enable", false)
	v.SetDefault("parser.base_url", "")
	v.SetDefault("parser.api_key", "${LLAMA_CLOUD_API_KEY}")
	v.SetDefault("parser.instruction", "")
	v.SetDefault("parser.vision_model", "")
	v.SetDefault("parser.language", "en")
	v.SetDefault("parser.timeout", "120s")
	v.SetDefault("parser.max_retries", 2)

	v.SetDefault("chunk.size", 1000)
	v.SetDefault("chunk.overlap", 200)
	v.SetDefault("chunk.dedupe", true)

	v.SetDefault("retrieval.k", 5)
	v.SetDefault("retrieval.top_n", 3)
	v.SetDefault("retrieval.min_score", 0)
	v.SetDefault("retrieval.rerank_timeout", "30s")

	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.key_prefix", "rag:")
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.name", "indexing")
	v.SetDefault("queue.concurrency", 1)
	v.SetDefault("queue.retry_limit", 1)
	v.SetDefault("queue.retry_delay", "10s")
	v.SetDefault("queue.timeout", "30m")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/registry.db")
}
