package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/fyerfyer/multimodal-rag/internal/document"
)

// AnswerCache 问答结果缓存
// 键包含集合名和集合大小，索引增长后旧答案自然失效
type AnswerCache struct {
	cache Cache
	ttl   time.Duration
}

// NewAnswerCache 创建问答结果缓存
func NewAnswerCache(c Cache, ttl time.Duration) *AnswerCache {
	return &AnswerCache{cache: c, ttl: ttl}
}

// AnswerKey 生成问答缓存键
func AnswerKey(collection string, size int, question string) string {
	return GenerateCacheKey("qa", collection, strconv.Itoa(size), Fingerprint(question))
}

// Get 读取缓存的问答结果
func (a *AnswerCache) Get(ctx context.Context, key string) (*document.QueryResult, bool, error) {
	raw, found, err := a.cache.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	var result document.QueryResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

// Set 写入问答结果
func (a *AnswerCache) Set(ctx context.Context, key string, result *document.QueryResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return a.cache.Set(ctx, key, string(data), a.ttl)
}

// Clear 清空全部缓存
func (a *AnswerCache) Clear(ctx context.Context) error {
	return a.cache.Clear(ctx)
}
