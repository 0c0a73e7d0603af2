package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Chunk.Size)
	assert.Equal(t, 200, cfg.Chunk.Overlap)
	assert.True(t, cfg.Chunk.Dedupe)
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, 3, cfg.Retrieval.TopN)
	assert.Equal(t, "multi_rag", cfg.Index.Collection)
	assert.Equal(t, "./persist/faiss_db_prod", cfg.Index.Dir)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.RewriteModel)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.AnswerModel)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 30*time.Minute, cfg.Queue.Timeout)

	// 再次加载读取刚写出的文件
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Index, again.Index)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("DEDUP", "false")
	t.Setenv("RETRIEVAL_K", "8")
	t.Setenv("CHROMA_COLLECTION_NAME", "reports")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunk.Size)
	assert.Equal(t, 50, cfg.Chunk.Overlap)
	assert.False(t, cfg.Chunk.Dedupe)
	assert.Equal(t, 8, cfg.Retrieval.K)
	assert.Equal(t, "reports", cfg.Index.Collection)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadExpandsPlaceholders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embed:
  provider: gemini
  model: text-embedding-004
  api_key: ${TEST_EMBED_KEY}
storage:
  type: local
  secret_key: prefix-${TEST_SECRET}
`), 0644))
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("TEST_EMBED_KEY", "embed-key")
	t.Setenv("TEST_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "embed-key", cfg.Embed.APIKey)
	assert.Equal(t, "prefix-s3cret", cfg.Storage.SecretKey)
}

func TestLoadRerankType(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "lexical", cfg.Rerank.Type)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rerank:\n  base_url: http://localhost:8001\n"), 0644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "remote", cfg.Rerank.Type)

	// 显式指定的类型优先
	require.NoError(t, os.WriteFile(path, []byte("rerank:\n  type: lexical\n  base_url: http://localhost:8001\n"), 0644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lexical", cfg.Rerank.Type)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Overlap")
}

func TestLoadRejectsIncompleteMinio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  type: minio\n  bucket: docs\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Endpoint")
}

func TestNewLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "rag.log")
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", File: file, MaxSizeMB: 1})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Warn("disk almost full")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk almost full")

	fallback := NewLogger(LogConfig{Level: "verbose", Format: "text"})
	assert.Equal(t, logrus.InfoLevel, fallback.GetLevel())
}
